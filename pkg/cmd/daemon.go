package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/testground/failpoint/pkg/config"
	"github.com/testground/failpoint/pkg/daemon"
	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/logging"
	"github.com/testground/failpoint/pkg/metrics"
	"github.com/testground/failpoint/pkg/store"
	fpsync "github.com/testground/failpoint/pkg/sync"
)

// DaemonCommand defines the `daemon` command.
var DaemonCommand = cli.Command{
	Name:   "daemon",
	Usage:  "start a long-running daemon process that administers fail points",
	Action: daemonCommand,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address to listen on (overrides .env.toml)",
		},
	},
}

func daemonCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(ProcessContext())
	defer cancel()

	cfg := &config.EnvConfig{}
	if err := cfg.Load(); err != nil {
		return err
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Daemon.Listen = listen
	}

	signals := fpsync.NewRegistry(fpsync.WithWaitInterval(cfg.Sync.WaitInterval.Std()))
	catalogOpts := []failpoint.CatalogOption{
		failpoint.WithCatalogQuiescencePoll(cfg.Sync.QuiescencePoll.Std()),
	}
	if cfg.Daemon.AutoRegister {
		catalogOpts = append(catalogOpts, failpoint.WithAutoRegister())
	}

	var opts []daemon.Option
	if cfg.Daemon.Metrics {
		collector := metrics.NewCollector(signals)
		catalogOpts = append(catalogOpts, failpoint.WithCatalogObserver(collector))
		opts = append(opts, daemon.WithMetrics(collector))
	}
	var st *store.Store
	if cfg.Daemon.Persist {
		var err error
		if st, err = store.Open(cfg.Daemon.Store); err != nil {
			return err
		}
		opts = append(opts, daemon.WithStore(st))
	}
	if len(cfg.FailPoints) > 0 {
		presets := make(map[string]failpoint.Document, len(cfg.FailPoints))
		for name, req := range cfg.FailPoints {
			presets[name] = failpoint.Document(req)
		}
		opts = append(opts, daemon.WithPresets(presets))
	}

	catalog := failpoint.NewCatalog(signals, catalogOpts...)
	srv, err := daemon.New(cfg.Daemon.Listen, catalog, opts...)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.S().Infow("shutting down daemon")

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	logging.S().Infow("daemon stopped", "err", err)
	return err
}
