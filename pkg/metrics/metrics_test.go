package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testground/failpoint/pkg/failpoint"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

func TestCollectorObservesCatalog(t *testing.T) {
	log := zap.NewNop().Sugar()
	signals := fpsync.NewRegistry(fpsync.WithLogger(log))
	c := NewCollector(signals)
	cat := failpoint.NewCatalog(signals, failpoint.WithCatalogLogger(log), failpoint.WithCatalogObserver(c))

	fp := cat.MustRegister("fp")
	_, err := cat.Configure("fp", failpoint.Document{"mode": map[string]interface{}{"times": 2}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		fp.ShouldFail(context.Background())
	}
	signals.Signal("a", "b")

	require.Equal(t, 2.0, testutil.ToFloat64(c.fired.WithLabelValues("fp")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.configured.WithLabelValues("fp", "nTimes")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `failpoint_fired_total{name="fp"} 2`)
	require.Contains(t, string(body), "failpoint_active_signals 2")
}
