package cmd

import (
	"errors"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/client"
)

// DescribeCommand defines the `describe` command.
var DescribeCommand = cli.Command{
	Name:      "describe",
	Usage:     "describe a fail point",
	ArgsUsage: "<fail point name>",
	Action:    describeCommand,
}

func describeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("missing fail point name")
	}

	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.Describe(ProcessContext(), &api.DescribeRequest{Name: c.Args().First()})
	if err != nil {
		return err
	}

	info, err := client.ParseDescribeResponse(r, os.Stdout)
	if err != nil {
		return err
	}
	return printJSON(info)
}
