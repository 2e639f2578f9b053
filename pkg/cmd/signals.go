package cmd

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/client"
)

// SignalsCommand defines the `signals` command.
var SignalsCommand = cli.Command{
	Name:   "signals",
	Usage:  "list, clear or reset the active signals of the daemon",
	Action: signalsCommand,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "clear",
			Usage: "signal to remove from the active set; can be repeated",
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "remove every signal from the active set",
		},
	},
}

func signalsCommand(c *cli.Context) error {
	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.Signals(ProcessContext(), &api.SignalsRequest{
		Clear: c.StringSlice("clear"),
		Reset: c.Bool("reset"),
	})
	if err != nil {
		return err
	}

	resp, err := client.ParseSignalsResponse(r, io.Discard)
	if err != nil {
		return err
	}
	for _, s := range resp.Active {
		if _, err := io.WriteString(os.Stdout, s+"\n"); err != nil {
			return err
		}
	}
	return nil
}
