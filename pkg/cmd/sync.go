package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/client"
)

// SyncCommand defines the `sync` command.
var SyncCommand = cli.Command{
	Name:  "sync",
	Usage: "emit signals and wait for others on the daemon, without a fail point",
	Description: "Runs a rendezvous inline through the pseudo fail point \"now\": the given signals are " +
		"emitted, then the command blocks until every --wait-for signal is active.",
	Action: syncCommand,
	Flags:  syncFlags,
}

func syncCommand(c *cli.Context) error {
	sync, ok := syncFromFlags(c)
	if !ok {
		return errors.New("nothing to do; pass --signal and/or --wait-for")
	}

	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.SyncNow(ProcessContext(), sync)
	if err != nil {
		return err
	}

	resp, err := client.ParseSignalsResponse(r, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Println("active signals:", strings.Join(resp.Active, ", "))
	return nil
}
