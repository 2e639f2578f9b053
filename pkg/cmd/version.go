package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/version"
)

var VersionCommand = cli.Command{
	Name:   "version",
	Usage:  "print version numbers",
	Action: versionCommand,
}

func versionCommand(c *cli.Context) error {
	fmt.Println("failpoint")
	if len(version.GitCommit) < 8 {
		fmt.Println("Git commit: dirty")
		return nil
	}
	fmt.Println("Git commit:", version.GitCommit[:8])
	return nil
}
