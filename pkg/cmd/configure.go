package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/client"
	"github.com/testground/failpoint/pkg/conv"
)

// ConfigureCommand defines the `configure` command.
var ConfigureCommand = cli.Command{
	Name:      "configure",
	Usage:     "configure a fail point",
	ArgsUsage: "<fail point name>",
	Description: "Sets the mode, payload and rendezvous of a fail point. The mode is one of --mode off|alwaysOn, " +
		"--times <n>, --skip <n> or --probability <p>. Alternatively, --request takes the whole " +
		"configuration request as JSON.",
	Action: configureCommand,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "mode",
			Usage: "off or alwaysOn",
		},
		&cli.Int64Flag{
			Name:  "times",
			Usage: "fire on the next <n> evaluations",
		},
		&cli.Int64Flag{
			Name:  "skip",
			Usage: "pass the next <n> evaluations, then fire forever",
		},
		&cli.Float64Flag{
			Name:  "probability",
			Usage: "fire each evaluation with probability <p> in [0, 1]",
		},
		&cli.StringFlag{
			Name:  "data",
			Usage: "payload handed to the instrumented code, as a JSON object",
		},
		&cli.StringSliceFlag{
			Name:  "param",
			Usage: "payload field in key=value form, merged over --data; can be repeated",
		},
		&cli.StringFlag{
			Name:  "request",
			Usage: "the full configuration request as a JSON object",
		},
	}, syncFlags...),
}

func configureCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("missing fail point name")
	}
	name := c.Args().First()

	req, err := requestFromFlags(c)
	if err != nil {
		return err
	}

	cl, _, err := setupClient(c)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := cl.Configure(ProcessContext(), name, req)
	if err != nil {
		return err
	}

	info, err := client.ParseConfigureResponse(r, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("%s is now %s\n", aurora.Bold(info.Name), aurora.Green(info.Mode))
	return printJSON(info)
}

func requestFromFlags(c *cli.Context) (map[string]interface{}, error) {
	if raw := c.String("request"); raw != "" {
		return decodeObject("--request", raw)
	}

	var modes []interface{}
	if m := c.String("mode"); m != "" {
		modes = append(modes, m)
	}
	if c.IsSet("times") {
		modes = append(modes, map[string]interface{}{"times": c.Int64("times")})
	}
	if c.IsSet("skip") {
		modes = append(modes, map[string]interface{}{"skip": c.Int64("skip")})
	}
	if c.IsSet("probability") {
		modes = append(modes, map[string]interface{}{"activationProbability": c.Float64("probability")})
	}
	switch len(modes) {
	case 0:
		return nil, errors.New("missing mode; pass one of --mode, --times, --skip or --probability")
	case 1:
	default:
		return nil, errors.New("only one of --mode, --times, --skip or --probability may be passed")
	}

	req := map[string]interface{}{"mode": modes[0]}
	data := make(map[string]interface{})
	if raw := c.String("data"); raw != "" {
		var err error
		if data, err = decodeObject("--data", raw); err != nil {
			return nil, err
		}
	}
	params, err := conv.ParseKeyValues(c.StringSlice("param"))
	if err != nil {
		return nil, err
	}
	for k, v := range conv.InferTypedMap(params) {
		data[k] = v
	}
	if len(data) > 0 {
		req["data"] = data
	}
	if sync, ok := syncFromFlags(c); ok {
		req["sync"] = sync
	}
	return req, nil
}

func decodeObject(flag, raw string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object: %w", flag, err)
	}
	return obj, nil
}
