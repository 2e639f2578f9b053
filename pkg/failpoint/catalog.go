package failpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/testground/failpoint/pkg/logging"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

// NameNow is the pseudo fail point name that runs a rendezvous inline.
const NameNow = "now"

// Catalog is a registry of named fail points that share one signal registry.
type Catalog struct {
	mu     sync.RWMutex
	points map[string]*FailPoint

	signals      *fpsync.Registry
	log          *zap.SugaredLogger
	observer     Observer
	autoRegister bool
	poll         time.Duration
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogLogger sets the logger of the catalog and of its fail points.
func WithCatalogLogger(log *zap.SugaredLogger) CatalogOption {
	return func(c *Catalog) {
		c.log = log
	}
}

// WithCatalogObserver sets the observer of every fail point in the catalog.
func WithCatalogObserver(o Observer) CatalogOption {
	return func(c *Catalog) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithAutoRegister makes Configure create fail points it does not know about.
func WithAutoRegister() CatalogOption {
	return func(c *Catalog) {
		c.autoRegister = true
	}
}

// WithCatalogQuiescencePoll sets the quiescence poll of every fail point in the
// catalog.
func WithCatalogQuiescencePoll(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		if d > 0 {
			c.poll = d
		}
	}
}

// NewCatalog creates an empty catalog. A nil signals registry gives the catalog
// a private one.
func NewCatalog(signals *fpsync.Registry, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		points:   make(map[string]*FailPoint),
		signals:  signals,
		log:      logging.S(),
		observer: nopObserver{},
		poll:     DefaultQuiescencePoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signals == nil {
		c.signals = fpsync.NewRegistry(fpsync.WithLogger(c.log))
	}
	return c
}

// Default is the process-wide catalog.
var Default = NewCatalog(fpsync.NewRegistry())

// Register defines a fail point in the Default catalog. It panics on a
// duplicate name, and is meant for package-level declarations:
//
//	var hangAfterCommit = failpoint.Register("hangAfterStartingCoordinateCommit")
func Register(name string) *FailPoint {
	return Default.MustRegister(name)
}

// Signals returns the signal registry shared by the catalog's fail points.
func (c *Catalog) Signals() *fpsync.Registry {
	return c.signals
}

// Register creates a fail point called name.
func (c *Catalog) Register(name string) (*FailPoint, error) {
	if name == "" {
		return nil, errors.New("fail point name must not be empty")
	}
	if name == NameNow {
		return nil, errors.Newf("fail point name %q is reserved", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.points[name]; ok {
		return nil, errors.Wrapf(ErrDuplicate, "fail point %q", name)
	}
	fp := c.newFailPoint(name)
	c.points[name] = fp
	return fp, nil
}

// MustRegister is Register, panicking on error.
func (c *Catalog) MustRegister(name string) *FailPoint {
	fp, err := c.Register(name)
	if err != nil {
		panic(err)
	}
	return fp
}

func (c *Catalog) newFailPoint(name string) *FailPoint {
	return New(name, c.signals,
		WithLogger(c.log.With("failpoint", name)),
		WithObserver(c.observer),
		WithQuiescencePoll(c.poll),
	)
}

// Lookup returns the fail point called name.
func (c *Catalog) Lookup(name string) (*FailPoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fp, ok := c.points[name]
	return fp, ok
}

// Names returns the names of all fail points, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.points))
	for n := range c.points {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns the diagnostics of every fail point, sorted by name.
func (c *Catalog) Describe() []Document {
	names := c.Names()
	out := make([]Document, 0, len(names))
	for _, n := range names {
		if fp, ok := c.Lookup(n); ok {
			out = append(out, fp.Diagnostics())
		}
	}
	return out
}

// Configure validates req and applies it to the fail point called name. The
// request is fully validated before anything is changed.
func (c *Catalog) Configure(name string, req Document) (*FailPoint, error) {
	cfg, err := ParseConfig(req)
	if err != nil {
		return nil, err
	}

	fp, err := c.resolve(name)
	if err != nil {
		return nil, err
	}

	fp.Apply(cfg)
	return fp, nil
}

func (c *Catalog) resolve(name string) (*FailPoint, error) {
	if fp, ok := c.Lookup(name); ok {
		return fp, nil
	}
	if !c.autoRegister {
		return nil, newError(FailPointSetFailed, "Unknown fail point: %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if fp, ok := c.points[name]; ok {
		return fp, nil
	}
	if name == "" || name == NameNow {
		return nil, newError(FailPointSetFailed, "invalid fail point name: %q", name)
	}
	fp := c.newFailPoint(name)
	c.points[name] = fp
	c.log.Infow("registered fail point on first configuration", "name", name)
	return fp, nil
}

// SyncNow runs the rendezvous described by the 'sync' field of req inline,
// without any fail point firing.
func (c *Catalog) SyncNow(ctx context.Context, req Document) error {
	v, ok := req[FieldSync]
	if !ok {
		return newError(IllegalOperation, "the 'now' fail point requires a 'sync' object")
	}
	syncDoc, ok := asDocument(v)
	if !ok {
		return newError(TypeMismatch, "'sync' must be a JSON object")
	}
	sc, err := ParseSyncConfig(syncDoc)
	if err != nil {
		return err
	}

	id := xid.New().String()
	log := c.log.With("wait_id", id)
	log.Debugw("inline rendezvous started", "signals", sc.Signals, "wait_for", sc.WaitFor)

	if err := c.signals.Wait(ctx, sc.Request()); err != nil {
		return err
	}

	log.Debugw("inline rendezvous complete")
	return nil
}
