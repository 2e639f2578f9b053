package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/testground/failpoint/pkg/api"
)

func parseConfigureFlags(t *testing.T, args ...string) (map[string]interface{}, error) {
	t.Helper()

	var (
		req map[string]interface{}
		err error
	)
	app := &cli.App{
		Commands: []*cli.Command{{
			Name:  "configure",
			Flags: ConfigureCommand.Flags,
			Action: func(c *cli.Context) error {
				req, err = requestFromFlags(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"failpoint", "configure"}, args...)))
	return req, err
}

func TestRequestFromFlags(t *testing.T) {
	req, err := parseConfigureFlags(t, "--times", "3")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"mode": map[string]interface{}{"times": int64(3)}}, req)

	req, err = parseConfigureFlags(t, "--mode", "alwaysOn", "--data", `{"errorCode": 6}`)
	require.NoError(t, err)
	require.Equal(t, "alwaysOn", req["mode"])
	require.Equal(t, json.Number("6"), req["data"].(map[string]interface{})["errorCode"])

	req, err = parseConfigureFlags(t, "--mode", "alwaysOn", "--data", `{"errorCode": 6, "msg": "x"}`, "--param", "errorCode=7")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"errorCode": int64(7), "msg": "x"}, req["data"])

	req, err = parseConfigureFlags(t, "--probability", "0.5",
		"--signal", "a", "--signal", "b", "--wait-for", "c", "--timeout", "1.5", "--clear-signal")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"activationProbability": 0.5}, req["mode"])
	require.Equal(t, map[string]interface{}{
		"signals":     []string{"a", "b"},
		"waitFor":     []string{"c"},
		"timeout":     1.5,
		"clearSignal": true,
	}, req["sync"])

	req, err = parseConfigureFlags(t, "--request", `{"mode": {"skip": 2}}`)
	require.NoError(t, err)
	require.Equal(t, json.Number("2"), req["mode"].(map[string]interface{})["skip"])
}

func TestRequestFromFlagsRejectsAmbiguousMode(t *testing.T) {
	_, err := parseConfigureFlags(t)
	require.Error(t, err)

	_, err = parseConfigureFlags(t, "--times", "1", "--skip", "1")
	require.Error(t, err)

	_, err = parseConfigureFlags(t, "--mode", "off", "--data", "[1]")
	require.Error(t, err)
}

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	printList(&buf, api.ListResponse{
		{Name: "hang", Mode: "alwaysOn", Active: true, TimesEntered: 1234},
		{Name: "drop", Mode: "nTimes", Value: 2, Sync: &api.SyncInfo{Signals: []string{"a"}, WaitFor: []string{"b"}}},
	})

	out := buf.String()
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "hang")
	require.Contains(t, out, "1,234")
	require.Contains(t, out, "[a] -> [b]")
}
