package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	guuid "github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/pborman/uuid"
	"go.uber.org/zap"

	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/logging"
	"github.com/testground/failpoint/pkg/metrics"
	"github.com/testground/failpoint/pkg/store"
)

// HeaderDaemonID carries the id of the daemon instance on every response.
const HeaderDaemonID = "X-Failpoint-Daemon"

type Daemon struct {
	id      string
	server  *http.Server
	l       net.Listener
	doneCh  chan struct{}
	log     *zap.SugaredLogger
	catalog *failpoint.Catalog
	store   *store.Store
	metrics *metrics.Collector
	presets map[string]failpoint.Document
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStore persists applied configurations to s and replays them on start.
// The daemon closes s on Shutdown.
func WithStore(s *store.Store) Option {
	return func(d *Daemon) {
		d.store = s
	}
}

// WithMetrics serves c on GET /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Daemon) {
		d.metrics = c
	}
}

// WithPresets applies the given configuration requests, keyed by fail point
// name, after the stored configurations have been replayed.
func WithPresets(presets map[string]failpoint.Document) Option {
	return func(d *Daemon) {
		d.presets = presets
	}
}

// New creates a new Daemon administering catalog and attaches the following
// handlers:
//
// * POST /configure: configures a fail point, or runs an inline rendezvous for "now".
// * GET /list: describes all fail points.
// * POST /describe: describes one fail point.
// * POST /evaluate: evaluates a fail point on behalf of a remote participant.
// * POST /signals: clears and lists active signals.
// * GET /metrics: prometheus metrics, when enabled.
//
// A type-safe client for this server can be found in the `pkg/client` package.
func New(listenAddr string, catalog *failpoint.Catalog, opts ...Option) (srv *Daemon, err error) {
	srv = &Daemon{
		id:      guuid.New().String(),
		log:     logging.S(),
		catalog: catalog,
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.log = srv.log.With("daemon_id", srv.id)

	if err := srv.restore(); err != nil {
		return nil, err
	}

	srv.server = &http.Server{
		Handler:      srv.Handler(),
		WriteTimeout: 600 * time.Second,
		ReadTimeout:  600 * time.Second,
	}

	srv.l, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	return srv, nil
}

// Handler returns the router serving the daemon's API.
func (srv *Daemon) Handler() http.Handler {
	r := mux.NewRouter()

	// Set a unique request ID.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Request-ID", uuid.New()[:8])
			w.Header().Set(HeaderDaemonID, srv.id)
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/configure", srv.configureHandler).Methods("POST")
	r.HandleFunc("/list", srv.listHandler).Methods("GET")
	r.HandleFunc("/describe", srv.describeHandler).Methods("POST")
	r.HandleFunc("/evaluate", srv.evaluateHandler).Methods("POST")
	r.HandleFunc("/signals", srv.signalsHandler).Methods("POST")
	if srv.metrics != nil {
		r.Handle("/metrics", srv.metrics.Handler()).Methods("GET")
	}
	return r
}

// ID returns the id of this daemon instance.
func (srv *Daemon) ID() string {
	return srv.id
}

// Serve starts the server and blocks until the server is closed, either
// explicitly via Shutdown, or due to a fault condition. It propagates the
// non-nil err return value from http.Serve.
func (srv *Daemon) Serve() error {
	select {
	case <-srv.doneCh:
		return fmt.Errorf("tried to reuse a stopped server")
	default:
	}

	srv.log.Infow("daemon listening", "addr", srv.Addr(), "failpoints", len(srv.catalog.Names()))
	return srv.server.Serve(srv.l)
}

func (srv *Daemon) Addr() string {
	return srv.l.Addr().String()
}

func (srv *Daemon) Port() int {
	return srv.l.Addr().(*net.TCPAddr).Port
}

func (srv *Daemon) Shutdown(ctx context.Context) error {
	defer close(srv.doneCh)

	var merr *multierror.Error
	merr = multierror.Append(merr, srv.server.Shutdown(ctx))
	if srv.store != nil {
		merr = multierror.Append(merr, srv.checkpoint())
		merr = multierror.Append(merr, srv.store.Close())
	}
	return merr.ErrorOrNil()
}
