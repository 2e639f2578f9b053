package cmd

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/client"
)

// EvaluateCommand defines the `evaluate` command.
var EvaluateCommand = cli.Command{
	Name:      "evaluate",
	Usage:     "evaluate a fail point once, as an instrumented participant would",
	ArgsUsage: "<fail point name>",
	Description: "Runs the decision algorithm of the fail point on the daemon. When it fires with a " +
		"rendezvous configured, this command blocks until the rendezvous completes or it is interrupted.",
	Action: evaluateCommand,
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "seed of the random generator used by this evaluation",
		},
	},
}

func evaluateCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("missing fail point name")
	}

	req := &api.EvaluateRequest{Name: c.Args().First()}
	if c.IsSet("seed") {
		seed := c.Int64("seed")
		if seed < math.MinInt32 || seed > math.MaxInt32 {
			return fmt.Errorf("--seed must fit in 32 bits: %d", seed)
		}
		s := int32(seed)
		req.Seed = &s
	}

	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.Evaluate(ProcessContext(), req)
	if err != nil {
		return err
	}

	resp, err := client.ParseEvaluateResponse(r, os.Stdout)
	if err != nil {
		return err
	}

	if resp.Fired {
		fmt.Println(aurora.Bold(aurora.Red("fired")))
	} else {
		fmt.Println(aurora.Faint(resp.Outcome))
	}
	if resp.Error != "" {
		fmt.Println(aurora.Yellow("rendezvous interrupted: " + resp.Error))
	}
	if len(resp.Data) > 0 {
		return printJSON(resp.Data)
	}
	return nil
}
