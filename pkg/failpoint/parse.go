package failpoint

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	fpsync "github.com/testground/failpoint/pkg/sync"
)

// Field names of a configuration request.
const (
	FieldName = "configureFailPoint"
	FieldMode = "mode"
	FieldData = "data"
	FieldSync = "sync"

	ModeOff      = "off"
	ModeAlwaysOn = "alwaysOn"

	KeyTimes                 = "times"
	KeySkip                  = "skip"
	KeyActivationProbability = "activationProbability"

	KeySignals     = "signals"
	KeyWaitFor     = "waitFor"
	KeyTimeout     = "timeout"
	KeyClearSignal = "clearSignal"
)

// SyncConfig is the synchronization settings of a fail point. When Enabled, a
// firing evaluation emits Signals and blocks until every WaitFor signal is
// active.
type SyncConfig struct {
	Signals     []string
	WaitFor     []string
	Timeout     time.Duration
	ClearSignal bool
	Enabled     bool
}

// Request converts the config into a signal registry request.
func (s SyncConfig) Request() fpsync.Request {
	return fpsync.Request{
		Signals:     s.Signals,
		WaitFor:     s.WaitFor,
		Interval:    s.Timeout,
		ClearSignal: s.ClearSignal,
	}
}

// Document returns the config in request form.
func (s SyncConfig) Document() Document {
	d := Document{
		KeySignals: append([]string{}, s.Signals...),
		KeyWaitFor: append([]string{}, s.WaitFor...),
	}
	if s.Timeout > 0 {
		d[KeyTimeout] = s.Timeout.Seconds()
	}
	if s.ClearSignal {
		d[KeyClearSignal] = true
	}
	return d
}

// Config is a validated configuration, ready to be applied with SetMode.
type Config struct {
	Mode  Mode
	Value int32
	Data  Document
	Sync  SyncConfig
}

// ParseConfig validates a configuration request and converts it into a Config.
// It never mutates shared state; the same request always yields the same
// result. Any FieldName entry in req is ignored.
func ParseConfig(req Document) (Config, error) {
	var cfg Config

	modeVal, ok := req[FieldMode]
	if !ok {
		return Config{}, newError(IllegalOperation, "When setting a failpoint, you must supply a 'mode'")
	}

	switch m := modeVal.(type) {
	case string:
		switch m {
		case ModeOff:
			cfg.Mode = Off
		case ModeAlwaysOn:
			cfg.Mode = AlwaysOn
		default:
			return Config{}, newError(BadValue, "unknown mode: %s", m)
		}
	default:
		modeDoc, ok := asDocument(modeVal)
		if !ok {
			return Config{}, newError(TypeMismatch, "'mode' must be a string or JSON object")
		}
		mode, val, err := parseModeDocument(modeDoc)
		if err != nil {
			return Config{}, err
		}
		cfg.Mode, cfg.Value = mode, val
	}

	cfg.Data = Document{}
	if v, ok := req[FieldData]; ok {
		data, ok := asDocument(v)
		if !ok {
			return Config{}, newError(TypeMismatch, "the 'data' option must be a JSON object")
		}
		cfg.Data = data.Copy()
	}

	if v, ok := req[FieldSync]; ok {
		syncDoc, ok := asDocument(v)
		if !ok {
			return Config{}, newError(TypeMismatch, "'sync' must be a JSON object")
		}
		sc, err := ParseSyncConfig(syncDoc)
		if err != nil {
			return Config{}, err
		}
		cfg.Sync = sc
	}

	return cfg, nil
}

func parseModeDocument(modeDoc Document) (Mode, int32, error) {
	if len(modeDoc) != 1 {
		return Off, 0, newError(BadValue, "'mode' must be one of 'off', 'alwaysOn', 'times', 'skip' and 'activationProbability'")
	}

	switch {
	case modeDoc.Has(KeyTimes):
		val, err := extractCount(modeDoc, KeyTimes)
		return NTimes, val, err

	case modeDoc.Has(KeySkip):
		val, err := extractCount(modeDoc, KeySkip)
		return Skip, val, err

	case modeDoc.Has(KeyActivationProbability):
		p, ok := extractNumber(modeDoc[KeyActivationProbability])
		if !ok {
			return Off, 0, newError(TypeMismatch, "the 'activationProbability' option to 'mode' must be a double between 0 and 1")
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Off, 0, newError(BadValue, "activationProbability must be between 0.0 and 1.0; found %v", p)
		}
		return Random, int32(math.MaxInt32 * p), nil

	default:
		return Off, 0, newError(BadValue, "'mode' must be one of 'off', 'alwaysOn', 'times', 'skip' and 'activationProbability'")
	}
}

// extractCount reads a times/skip count: an integer in [0, MaxInt32].
func extractCount(doc Document, field string) (int32, error) {
	v, err := extractInteger(doc, field)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, newError(BadValue, "'%s' option to 'mode' must be positive", field)
	}
	if v > math.MaxInt32 {
		return 0, newError(BadValue, "'%s' option to 'mode' is too large", field)
	}
	return int32(v), nil
}

// ParseSyncConfig validates the object found under the 'sync' field. A
// well-formed object always yields an enabled SyncConfig.
func ParseSyncConfig(doc Document) (SyncConfig, error) {
	var (
		sc  SyncConfig
		err error
	)

	if v, ok := doc[KeySignals]; ok {
		if sc.Signals, err = extractStringSet(v, KeySignals); err != nil {
			return SyncConfig{}, err
		}
	}
	if v, ok := doc[KeyWaitFor]; ok {
		if sc.WaitFor, err = extractStringSet(v, KeyWaitFor); err != nil {
			return SyncConfig{}, err
		}
	}
	if v, ok := doc[KeyTimeout]; ok {
		secs, ok := extractNumber(v)
		if !ok {
			return SyncConfig{}, newError(TypeMismatch, "'sync.timeout' must be a number of seconds")
		}
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			return SyncConfig{}, newError(BadValue, "'sync.timeout' must be positive; found %v", secs)
		}
		sc.Timeout = time.Duration(secs * float64(time.Second))
	}
	if v, ok := doc[KeyClearSignal]; ok {
		b, ok := v.(bool)
		if !ok {
			return SyncConfig{}, newError(TypeMismatch, "'sync.clearSignal' must be a boolean")
		}
		sc.ClearSignal = b
	}

	sc.Enabled = true
	return sc, nil
}

func extractStringSet(v interface{}, field string) ([]string, error) {
	var items []interface{}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []interface{}:
		items = t
	default:
		return nil, newError(TypeMismatch, "'sync.%s' must be an array of strings", field)
	}

	set := make(map[string]struct{}, len(items))
	for _, e := range items {
		s, ok := e.(string)
		if !ok {
			return nil, newError(TypeMismatch, "'sync.%s' must be an array of strings", field)
		}
		set[s] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// extractInteger reads an integral number. Non-numbers are a TypeMismatch;
// numbers that are not exactly representable as an int64 are a BadValue.
func extractInteger(doc Document, field string) (int64, error) {
	notIntegral := newError(BadValue, "Expected field %s to have a value exactly representable as a 64-bit integer", field)

	switch n := doc[field].(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n), notIntegral)
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n, notIntegral)
	case float32:
		return floatToInt64(float64(n), notIntegral)
	case float64:
		return floatToInt64(n, notIntegral)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, notIntegral
		}
		return floatToInt64(f, notIntegral)
	default:
		return 0, newError(TypeMismatch, "Expected field %s to have a numeric type", field)
	}
}

func uintToInt64(u uint64, errOverflow error) (int64, error) {
	if u > math.MaxInt64 {
		return 0, errOverflow
	}
	return int64(u), nil
}

func floatToInt64(f float64, errNotIntegral error) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errNotIntegral
	}
	return int64(f), nil
}

func extractNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
