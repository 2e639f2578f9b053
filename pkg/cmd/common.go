package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/client"
	"github.com/testground/failpoint/pkg/config"
)

func setupClient(c *cli.Context) (*client.Client, *config.EnvConfig, error) {
	cfg := &config.EnvConfig{}
	if err := cfg.Load(); err != nil {
		return nil, nil, err
	}
	endpoint := c.String("endpoint")

	if endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}

	cl := client.New(cfg)
	return cl, cfg, nil
}

// syncFlags describe a rendezvous; they are shared by `configure` and `sync`.
var syncFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "signal",
		Usage: "signal to emit when the fail point fires; can be repeated",
	},
	&cli.StringSliceFlag{
		Name:  "wait-for",
		Usage: "signal to wait for after emitting; can be repeated",
	},
	&cli.Float64Flag{
		Name:  "timeout",
		Usage: "seconds each wait iteration lasts before re-checking",
	},
	&cli.BoolFlag{
		Name:  "clear-signal",
		Usage: "remove the awaited signals once they have been seen",
	},
}

// syncFromFlags builds a sync object from syncFlags. ok is false when none were
// set.
func syncFromFlags(c *cli.Context) (sync map[string]interface{}, ok bool) {
	sync = make(map[string]interface{})
	if v := c.StringSlice("signal"); len(v) > 0 {
		sync["signals"] = v
	}
	if v := c.StringSlice("wait-for"); len(v) > 0 {
		sync["waitFor"] = v
	}
	if c.IsSet("timeout") {
		sync["timeout"] = c.Float64("timeout")
	}
	if c.Bool("clear-signal") {
		sync["clearSignal"] = true
	}
	return sync, len(sync) > 0
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	return nil
}
