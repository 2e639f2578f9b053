package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora"
	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/client"
)

// ListCommand defines the `list` command.
var ListCommand = cli.Command{
	Name:   "list",
	Usage:  "list all fail points known to the daemon",
	Action: listCommand,
}

func listCommand(c *cli.Context) error {
	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.List(ProcessContext())
	if err != nil {
		return err
	}

	list, err := client.ParseListResponse(r, io.Discard)
	if err != nil {
		return err
	}

	printList(os.Stdout, list)
	return nil
}

func printList(out io.Writer, list api.ListResponse) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODE\tVALUE\tFIRED\tSYNC")
	for _, fp := range list {
		mode := aurora.Faint(fp.Mode)
		if fp.Active {
			mode = aurora.Green(fp.Mode)
		}
		sync := "-"
		if fp.Sync != nil {
			sync = fmt.Sprintf("%v -> %v", fp.Sync.Signals, fp.Sync.WaitFor)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", fp.Name, mode, fp.Value, humanize.Comma(fp.TimesEntered), sync)
	}
	_ = tw.Flush()
}
