package failpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/testground/failpoint/pkg/logging"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

// Layout of FailPoint.info: bit 31 is the active flag, bits 0-30 count the
// evaluations currently reading the configuration.
const (
	activeBit uint32 = 1 << 31
	refMask   uint32 = activeBit - 1
)

const (
	// DefaultQuiescencePoll is how often SetMode re-checks for in-flight
	// evaluations.
	DefaultQuiescencePoll = 50 * time.Millisecond

	pauseInterval   = 100 * time.Millisecond
	enteredInterval = 10 * time.Millisecond
)

// Observer is notified of fires and configuration changes. Fired is called on
// the hot path, only when a fail point fires.
type Observer interface {
	Fired(name string)
	Configured(name string, mode Mode)
}

type nopObserver struct{}

func (nopObserver) Fired(string)            {}
func (nopObserver) Configured(string, Mode) {}

// FailPoint is a named, dynamically configurable trigger instrumented into a
// code path.
//
// Checking a fail point that is off costs one atomic add and one atomic
// subtract. Reconfiguration clears the active flag, waits until no evaluation
// is reading the configuration, and only then replaces it, so an evaluation
// sees either the old configuration or the new one, never a mix.
type FailPoint struct {
	name     string
	signals  *fpsync.Registry
	observer Observer
	log      *zap.SugaredLogger
	poll     time.Duration

	info          atomic.Uint32
	timesOrPeriod atomic.Int32
	timesEntered  atomic.Int64

	// mu serializes configuration. mode, data and syncCfg are only written
	// under mu while info holds no readers.
	mu      sync.Mutex
	mode    Mode
	data    Document
	syncCfg SyncConfig
}

// Option configures a FailPoint.
type Option func(*FailPoint)

// WithLogger sets the logger of the fail point.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(fp *FailPoint) {
		fp.log = log
	}
}

// WithObserver sets the observer notified of fires and configurations.
func WithObserver(o Observer) Option {
	return func(fp *FailPoint) {
		if o != nil {
			fp.observer = o
		}
	}
}

// WithQuiescencePoll sets the interval SetMode sleeps between checks for
// in-flight evaluations.
func WithQuiescencePoll(d time.Duration) Option {
	return func(fp *FailPoint) {
		if d > 0 {
			fp.poll = d
		}
	}
}

// New creates a fail point in the off state. Rendezvous performed by the fail
// point go through signals; a nil registry gives the fail point a private one.
func New(name string, signals *fpsync.Registry, opts ...Option) *FailPoint {
	fp := &FailPoint{
		name:     name,
		signals:  signals,
		observer: nopObserver{},
		log:      logging.S(),
		poll:     DefaultQuiescencePoll,
		data:     Document{},
	}
	for _, opt := range opts {
		opt(fp)
	}
	if fp.signals == nil {
		fp.signals = fpsync.NewRegistry(fpsync.WithLogger(fp.log))
	}
	return fp
}

// Name returns the name of the fail point.
func (fp *FailPoint) Name() string {
	return fp.name
}

// Signals returns the registry used for rendezvous.
func (fp *FailPoint) Signals() *fpsync.Registry {
	return fp.signals
}

// Result is the outcome of Evaluate.
type Result struct {
	Outcome Outcome
	// Data is the payload snapshot when the fail point fired.
	Data Document
	// Err is set when the rendezvous that followed a fire was interrupted.
	Err error
}

// Fired reports whether the fail point fired.
func (r Result) Fired() bool {
	return r.Outcome == Fired
}

// ShouldFail evaluates the fail point and reports whether it fired.
func (fp *FailPoint) ShouldFail(ctx context.Context) bool {
	return fp.Evaluate(ctx, nil).Fired()
}

// ShouldFailIf is ShouldFail with a predicate over the payload. When pred
// returns false the evaluation is ignored and does not count as a fire.
func (fp *FailPoint) ShouldFailIf(ctx context.Context, pred func(Document) bool) bool {
	return fp.Evaluate(ctx, pred).Fired()
}

// Execute runs fn with the payload if the fail point fires.
func (fp *FailPoint) Execute(ctx context.Context, fn func(Document)) bool {
	return fp.ExecuteIf(ctx, nil, fn)
}

// ExecuteIf runs fn with the payload if pred accepts it and the fail point
// fires.
func (fp *FailPoint) ExecuteIf(ctx context.Context, pred func(Document) bool, fn func(Document)) bool {
	res := fp.Evaluate(ctx, pred)
	if res.Fired() {
		fn(res.Data)
	}
	return res.Fired()
}

// Evaluate runs the decision algorithm once. When the fail point fires and has
// synchronization enabled, Evaluate performs the rendezvous before returning;
// the rendezvous happens after the evaluation has left the reader count, so a
// blocked caller never holds up reconfiguration.
func (fp *FailPoint) Evaluate(ctx context.Context, pred func(Document) bool) Result {
	outcome, data, sc := fp.evaluate(ctx, pred)
	res := Result{Outcome: outcome, Data: data}
	if outcome == Fired && sc.Enabled {
		res.Err = fp.signals.Wait(ctx, sc.Request())
	}
	return res
}

func (fp *FailPoint) evaluate(ctx context.Context, pred func(Document) bool) (Outcome, Document, SyncConfig) {
	defer fp.info.Add(^uint32(0))

	if fp.info.Add(1)&activeBit == 0 {
		return Inactive, nil, SyncConfig{}
	}

	if pred != nil && !pred(fp.data) {
		return Ignored, nil, SyncConfig{}
	}

	if !fp.decide(ctx) {
		return Passed, nil, SyncConfig{}
	}

	fp.timesEntered.Add(1)
	fp.observer.Fired(fp.name)
	return Fired, fp.data, fp.syncCfg
}

func (fp *FailPoint) decide(ctx context.Context) bool {
	switch fp.mode {
	case AlwaysOn:
		return true

	case Random:
		return nextPositiveInt32(ctx) < fp.timesOrPeriod.Load()

	case NTimes:
		if fp.timesOrPeriod.Add(-1) <= 0 {
			fp.disable()
		}
		return true

	case Skip:
		// Stop decrementing once at or below zero so the counter never wraps.
		return fp.timesOrPeriod.Load() <= 0 || fp.timesOrPeriod.Add(-1) < 0

	default:
		fp.log.Errorw("fail point mode not supported", "name", fp.name, "mode", int(fp.mode))
		panic(errors.AssertionFailedf("fail point %q: mode not supported: %d", fp.name, int(fp.mode)))
	}
}

// SetMode replaces the configuration of the fail point. It blocks until every
// evaluation that started under the previous configuration has finished.
func (fp *FailPoint) SetMode(mode Mode, val int32, data Document, sc SyncConfig) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	// Enter write-only mode: new evaluations see the fail point as inactive.
	fp.disable()

	// Wait for in-flight readers of the old configuration.
	for fp.info.Load()&refMask != 0 {
		time.Sleep(fp.poll)
	}

	fp.mode = mode
	fp.timesOrPeriod.Store(val)
	fp.data = data.Copy()
	fp.syncCfg = SyncConfig{
		Signals:     append([]string(nil), sc.Signals...),
		WaitFor:     append([]string(nil), sc.WaitFor...),
		Timeout:     sc.Timeout,
		ClearSignal: sc.ClearSignal,
		Enabled:     sc.Enabled,
	}

	// {times: 0} is exhausted before its first evaluation.
	if mode != Off && !(mode == NTimes && val <= 0) {
		fp.enable()
	}

	fp.log.Infow("set fail point", "name", fp.name, "mode", mode, "value", val, "sync", sc.Enabled)
	fp.observer.Configured(fp.name, mode)
}

// Apply applies a parsed configuration.
func (fp *FailPoint) Apply(cfg Config) {
	fp.SetMode(cfg.Mode, cfg.Value, cfg.Data, cfg.Sync)
}

// Configure parses req and, if it is valid, applies it. An invalid request
// leaves the fail point untouched.
func (fp *FailPoint) Configure(req Document) (Config, error) {
	cfg, err := ParseConfig(req)
	if err != nil {
		return Config{}, err
	}
	fp.Apply(cfg)
	return cfg, nil
}

// Sync performs the rendezvous of the current configuration. It is a no-op
// when synchronization is not enabled.
func (fp *FailPoint) Sync(ctx context.Context) error {
	fp.mu.Lock()
	sc := fp.syncCfg
	fp.mu.Unlock()

	if !sc.Enabled {
		return nil
	}
	return fp.signals.Wait(ctx, sc.Request())
}

// PauseWhileSet blocks while the fail point keeps firing.
func (fp *FailPoint) PauseWhileSet(ctx context.Context) error {
	for fp.ShouldFail(ctx) {
		t := time.NewTimer(pauseInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// TimesEntered returns how many times the fail point has fired.
func (fp *FailPoint) TimesEntered() int64 {
	return fp.timesEntered.Load()
}

// WaitForTimesEntered blocks until the fail point has fired at least n times
// in total.
func (fp *FailPoint) WaitForTimesEntered(ctx context.Context, n int64) error {
	t := time.NewTicker(enteredInterval)
	defer t.Stop()

	for fp.TimesEntered() < n {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "fail point %q entered %d of %d times", fp.name, fp.TimesEntered(), n)
		case <-t.C:
		}
	}
	return nil
}

// IsActive reports whether the active flag is set.
func (fp *FailPoint) IsActive() bool {
	return fp.info.Load()&activeBit != 0
}

// Mode returns the configured mode.
func (fp *FailPoint) Mode() Mode {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.mode
}

// Payload returns the payload of the current configuration. The returned
// document must not be modified.
func (fp *FailPoint) Payload() Document {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.data
}

// Diagnostics returns the mode name, counters and payload of the fail point.
func (fp *FailPoint) Diagnostics() Document {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	d := Document{
		"name":         fp.name,
		"mode":         fp.mode.String(),
		"value":        fp.timesOrPeriod.Load(),
		"active":       fp.info.Load()&activeBit != 0,
		"timesEntered": fp.timesEntered.Load(),
		"data":         fp.data,
	}
	if fp.syncCfg.Enabled {
		d["sync"] = fp.syncCfg.Document()
	}
	return d
}

func (fp *FailPoint) enable() {
	fp.info.Or(activeBit)
}

func (fp *FailPoint) disable() {
	fp.info.And(^activeBit)
}
