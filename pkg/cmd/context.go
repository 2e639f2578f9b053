package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/testground/failpoint/pkg/logging"
)

// shutdownGrace bounds how long a command may take to wind down after the
// first interrupt. A daemon blocked in a rendezvous is cut off after it.
const shutdownGrace = 30 * time.Second

var (
	processContext     context.Context
	processContextOnce sync.Once
)

// ProcessContext returns a context that is cancelled on the first interrupt
// or termination signal. A second signal, or the grace period running out,
// exits the process.
func ProcessContext() context.Context {
	processContextOnce.Do(func() {
		var cancel context.CancelFunc
		processContext, cancel = context.WithCancel(context.Background())

		notify := make(chan os.Signal, 2)
		signal.Notify(notify, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
		go func() {
			defer signal.Stop(notify)

			sig := <-notify
			logging.S().Infow("shutting down", "signal", sig.String())
			cancel()

			select {
			case <-time.After(shutdownGrace):
				logging.S().Errorw("timed out on shutdown, terminating", "grace", shutdownGrace)
			case sig = <-notify:
				logging.S().Errorw("received another signal before graceful shutdown, terminating", "signal", sig.String())
			}
			_ = logging.S().Sync()
			os.Exit(1)
		}()
	})
	return processContext
}
