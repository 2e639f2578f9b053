package daemon_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/client"
	"github.com/testground/failpoint/pkg/config"
	"github.com/testground/failpoint/pkg/daemon"
	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/metrics"
	"github.com/testground/failpoint/pkg/store"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

func newCatalog(names ...string) *failpoint.Catalog {
	log := zap.NewNop().Sugar()
	c := failpoint.NewCatalog(fpsync.NewRegistry(fpsync.WithLogger(log)),
		failpoint.WithCatalogLogger(log),
		failpoint.WithCatalogQuiescencePoll(time.Millisecond),
	)
	for _, n := range names {
		c.MustRegister(n)
	}
	return c
}

func startDaemon(t *testing.T, catalog *failpoint.Catalog, opts ...daemon.Option) (*daemon.Daemon, *client.Client) {
	t.Helper()

	d, err := daemon.New("localhost:0", catalog, opts...)
	require.NoError(t, err)

	go func() {
		_ = d.Serve()
	}()

	cl := client.New(&config.EnvConfig{Client: config.ClientConfig{Endpoint: d.Addr()}})
	t.Cleanup(func() {
		_ = cl.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d, cl
}

func configure(t *testing.T, cl *client.Client, name string, req map[string]interface{}) (api.ConfigureResponse, error) {
	t.Helper()

	r, err := cl.Configure(context.Background(), name, req)
	require.NoError(t, err)
	return client.ParseConfigureResponse(r, io.Discard)
}

func TestConfigureListDescribe(t *testing.T) {
	catalog := newCatalog("hang", "drop")
	_, cl := startDaemon(t, catalog)
	ctx := context.Background()

	info, err := configure(t, cl, "hang", map[string]interface{}{
		"mode": map[string]interface{}{"times": 2},
		"data": map[string]interface{}{"errorCode": 6},
		"sync": map[string]interface{}{"signals": []string{"hung"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hang", info.Name)
	require.Equal(t, "nTimes", info.Mode)
	require.Equal(t, int32(2), info.Value)
	require.True(t, info.Active)
	require.EqualValues(t, 6, info.Data["errorCode"])
	require.NotNil(t, info.Sync)
	require.Equal(t, []string{"hung"}, info.Sync.Signals)

	fp, _ := catalog.Lookup("hang")
	require.True(t, fp.ShouldFail(ctx))
	require.True(t, catalog.Signals().IsActive("hung"))

	r, err := cl.List(ctx)
	require.NoError(t, err)
	list, err := client.ParseListResponse(r, io.Discard)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "drop", list[0].Name)
	require.Equal(t, "off", list[0].Mode)
	require.Equal(t, int64(1), list[1].TimesEntered)

	r, err = cl.Describe(ctx, &api.DescribeRequest{Name: "hang"})
	require.NoError(t, err)
	desc, err := client.ParseDescribeResponse(r, io.Discard)
	require.NoError(t, err)
	require.Equal(t, int32(1), desc.Value)

	r, err = cl.Describe(ctx, &api.DescribeRequest{Name: "missing"})
	require.NoError(t, err)
	_, err = client.ParseDescribeResponse(r, io.Discard)
	var rerr *client.ResponseError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "FailPointSetFailed", rerr.Code)
}

func TestConfigureErrors(t *testing.T) {
	_, cl := startDaemon(t, newCatalog("fp"))

	cases := []struct {
		name string
		fp   string
		req  map[string]interface{}
		code string
	}{
		{"unknown fail point", "nope", map[string]interface{}{"mode": "alwaysOn"}, "FailPointSetFailed"},
		{"missing mode", "fp", map[string]interface{}{}, "IllegalOperation"},
		{"bad mode", "fp", map[string]interface{}{"mode": "sometimes"}, "BadValue"},
		{"fractional times", "fp", map[string]interface{}{"mode": map[string]interface{}{"times": 1.5}}, "BadValue"},
		{"data not an object", "fp", map[string]interface{}{"mode": "alwaysOn", "data": 1}, "TypeMismatch"},
		{"now without sync", "now", map[string]interface{}{}, "IllegalOperation"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := configure(t, cl, c.fp, c.req)
			var rerr *client.ResponseError
			require.ErrorAs(t, err, &rerr)
			require.Equal(t, c.code, rerr.Code, rerr.Msg)
		})
	}
}

func TestErrorStatus(t *testing.T) {
	d, _ := startDaemon(t, newCatalog("fp"))
	h := d.Handler()

	cases := []struct {
		path   string
		body   string
		status int
	}{
		{"/configure", `{"configureFailPoint": "fp", "mode": {"times": -1}}`, http.StatusBadRequest},
		{"/configure", `{"configureFailPoint": "other", "mode": "off"}`, http.StatusNotFound},
		{"/configure", `not json`, http.StatusBadRequest},
		{"/evaluate", `{"name": "other"}`, http.StatusNotFound},
		{"/configure", `{"configureFailPoint": "fp", "mode": "alwaysOn"}`, http.StatusOK},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", c.path, strings.NewReader(c.body)))
		require.Equal(t, c.status, rec.Code, c.body)
		require.Equal(t, d.ID(), rec.Header().Get(daemon.HeaderDaemonID))
	}
}

func TestEvaluate(t *testing.T) {
	_, cl := startDaemon(t, newCatalog("flaky"))
	ctx := context.Background()

	_, err := configure(t, cl, "flaky", map[string]interface{}{
		"mode": map[string]interface{}{"activationProbability": 0.5},
		"data": map[string]interface{}{"delay": "10ms"},
	})
	require.NoError(t, err)

	evaluate := func(seed int32) api.EvaluateResponse {
		r, err := cl.Evaluate(ctx, &api.EvaluateRequest{Name: "flaky", Seed: &seed})
		require.NoError(t, err)
		resp, err := client.ParseEvaluateResponse(r, io.Discard)
		require.NoError(t, err)
		return resp
	}

	// the same seed gives the same outcome.
	fired := 0
	for seed := int32(0); seed < 32; seed++ {
		first := evaluate(seed)
		require.Equal(t, first, evaluate(seed))
		if first.Fired {
			fired++
			require.Equal(t, "fired", first.Outcome)
			require.Equal(t, "10ms", first.Data["delay"])
		} else {
			require.Equal(t, "passed", first.Outcome)
		}
	}
	require.Greater(t, fired, 0)
	require.Less(t, fired, 32)
}

func TestEvaluateRendezvous(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	catalog := newCatalog("participant")
	_, cl := startDaemon(t, catalog)

	_, err := configure(t, cl, "participant", map[string]interface{}{
		"mode": "alwaysOn",
		"sync": map[string]interface{}{"signals": []string{"waiting"}, "waitFor": []string{"go"}, "clearSignal": true},
	})
	require.NoError(t, err)

	var resp api.EvaluateResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := cl.Evaluate(gctx, &api.EvaluateRequest{Name: "participant"})
		if err != nil {
			return err
		}
		resp, err = client.ParseEvaluateResponse(r, io.Discard)
		return err
	})
	g.Go(func() error {
		r, err := cl.SyncNow(gctx, map[string]interface{}{"waitFor": []string{"waiting"}})
		if err != nil {
			return err
		}
		if _, err := client.ParseSignalsResponse(r, io.Discard); err != nil {
			return err
		}
		r, err = cl.SyncNow(gctx, map[string]interface{}{"signals": []string{"go"}})
		if err != nil {
			return err
		}
		_, err = client.ParseSignalsResponse(r, io.Discard)
		return err
	})
	require.NoError(t, g.Wait())

	require.True(t, resp.Fired)
	require.Empty(t, resp.Error)
	// clearSignal removed "go" once the participant saw it.
	require.Equal(t, []string{"waiting"}, catalog.Signals().Active())
}

func TestSignals(t *testing.T) {
	catalog := newCatalog()
	_, cl := startDaemon(t, catalog)
	ctx := context.Background()

	catalog.Signals().Signal("a", "b", "c")

	signals := func(req *api.SignalsRequest) []string {
		r, err := cl.Signals(ctx, req)
		require.NoError(t, err)
		resp, err := client.ParseSignalsResponse(r, io.Discard)
		require.NoError(t, err)
		return resp.Active
	}

	require.Equal(t, []string{"a", "b", "c"}, signals(&api.SignalsRequest{}))
	require.Equal(t, []string{"a", "c"}, signals(&api.SignalsRequest{Clear: []string{"b"}}))
	require.Empty(t, signals(&api.SignalsRequest{Reset: true}))
}

func TestPersistenceAndPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")

	st, err := store.Open(path)
	require.NoError(t, err)
	d, err := daemon.New("localhost:0", newCatalog("kept", "dropped", "forgotten"), daemon.WithStore(st))
	require.NoError(t, err)
	go func() {
		_ = d.Serve()
	}()
	cl := client.New(&config.EnvConfig{Client: config.ClientConfig{Endpoint: d.Addr()}})

	_, err = configure(t, cl, "kept", map[string]interface{}{"mode": map[string]interface{}{"skip": 2}})
	require.NoError(t, err)
	_, err = configure(t, cl, "dropped", map[string]interface{}{"mode": "alwaysOn"})
	require.NoError(t, err)
	_, err = configure(t, cl, "forgotten", map[string]interface{}{"mode": "alwaysOn"})
	require.NoError(t, err)
	_, err = configure(t, cl, "forgotten", map[string]interface{}{"mode": "off"})
	require.NoError(t, err)

	_ = cl.Close()
	require.NoError(t, d.Shutdown(context.Background()))

	// restart with a fresh catalog; presets win over stored configurations.
	st, err = store.Open(path)
	require.NoError(t, err)
	catalog := newCatalog("kept", "dropped", "forgotten")
	_, _ = startDaemon(t, catalog, daemon.WithStore(st), daemon.WithPresets(map[string]failpoint.Document{
		"dropped": {"mode": "off"},
	}))

	kept, _ := catalog.Lookup("kept")
	require.Equal(t, failpoint.Skip, kept.Mode())
	require.Equal(t, int32(2), kept.Diagnostics()["value"])

	dropped, _ := catalog.Lookup("dropped")
	require.Equal(t, failpoint.Off, dropped.Mode())

	forgotten, _ := catalog.Lookup("forgotten")
	require.False(t, forgotten.IsActive())
}

func TestShutdownCheckpointsTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")

	st, err := store.Open(path)
	require.NoError(t, err)
	catalog := newCatalog("once", "thrice", "untouched")
	d, err := daemon.New("localhost:0", catalog, daemon.WithStore(st))
	require.NoError(t, err)
	go func() {
		_ = d.Serve()
	}()
	cl := client.New(&config.EnvConfig{Client: config.ClientConfig{Endpoint: d.Addr()}})

	for name, n := range map[string]int{"once": 1, "thrice": 3, "untouched": 2} {
		_, err = configure(t, cl, name, map[string]interface{}{
			"mode": map[string]interface{}{"times": n},
			"data": map[string]interface{}{"name": name},
		})
		require.NoError(t, err)
	}

	ctx := context.Background()
	once, _ := catalog.Lookup("once")
	require.True(t, once.ShouldFail(ctx))
	thrice, _ := catalog.Lookup("thrice")
	require.True(t, thrice.ShouldFail(ctx))

	_ = cl.Close()
	require.NoError(t, d.Shutdown(ctx))

	st, err = store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Get("once")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.Get("thrice")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"times": json.Number("2")}, got["mode"])
	require.Equal(t, map[string]interface{}{"name": "thrice"}, got["data"])

	got, err = st.Get("untouched")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"times": json.Number("2")}, got["mode"])
}

func TestInvalidPresetFailsStart(t *testing.T) {
	_, err := daemon.New("localhost:0", newCatalog("fp"), daemon.WithPresets(map[string]failpoint.Document{
		"fp":      {"mode": "sometimes"},
		"missing": {"mode": "alwaysOn"},
	}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "preset fp")
	require.Contains(t, err.Error(), "preset missing")
}

func TestMetricsRoute(t *testing.T) {
	log := zap.NewNop().Sugar()
	signals := fpsync.NewRegistry(fpsync.WithLogger(log))
	collector := metrics.NewCollector(signals)
	catalog := failpoint.NewCatalog(signals, failpoint.WithCatalogLogger(log), failpoint.WithCatalogObserver(collector))
	catalog.MustRegister("fp")

	d, cl := startDaemon(t, catalog, daemon.WithMetrics(collector))
	_, err := configure(t, cl, "fp", map[string]interface{}{"mode": "alwaysOn"})
	require.NoError(t, err)

	resp, err := http.Get("http://" + d.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `failpoint_configured_total{mode="alwaysOn",name="fp"} 1`)
}
