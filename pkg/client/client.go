package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/logrusorgru/aurora"
	"github.com/mitchellh/mapstructure"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/config"
	"github.com/testground/failpoint/pkg/logging"
	"github.com/testground/failpoint/pkg/rpc"
)

// Client is the API client that performs all operations
// against a fail point daemon.
type Client struct {
	// client used to send and receive http requests.
	client   *http.Client
	endpoint string
}

// New initializes a new API client
func New(cfg *config.EnvConfig) *Client {
	endpoint := cfg.Client.Endpoint
	logging.S().Debugw("failpoint client initialized", "addr", endpoint)

	return &Client{
		client:   &http.Client{},
		endpoint: endpoint,
	}
}

// Close the transport used by the client
func (c *Client) Close() error {
	if t, ok := c.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// ResponseError is an error chunk returned by the daemon.
type ResponseError struct {
	// Code is the symbolic configuration error code, e.g. "BadValue". It is
	// empty for errors that are not configuration failures.
	Code string
	Msg  string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return e.Msg
	}
	return e.Code + ": " + e.Msg
}

// Configure sends a `configure` request to the daemon.
// The Body in the response implement an io.ReadCloser and it's up to the caller to
// close it.
// The response is a stream of `Chunk` protocol messages. See `ParseConfigureResponse()` for specifics.
func (c *Client) Configure(ctx context.Context, name string, r map[string]interface{}) (io.ReadCloser, error) {
	req := make(api.ConfigureRequest, len(r)+1)
	for k, v := range r {
		req[k] = v
	}
	req["configureFailPoint"] = name
	return c.post(ctx, "/configure", req)
}

// SyncNow sends a `configure` request for the "now" pseudo fail point, which
// runs the rendezvous described by sync inline on the daemon.
// See `ParseSignalsResponse()` for the response.
func (c *Client) SyncNow(ctx context.Context, sync map[string]interface{}) (io.ReadCloser, error) {
	return c.Configure(ctx, "now", map[string]interface{}{"sync": sync})
}

// List sends `list` request to the daemon.
// The Body in the response implement an io.ReadCloser and it's up to the caller to
// close it.
func (c *Client) List(ctx context.Context) (io.ReadCloser, error) {
	return c.request(ctx, "GET", "/list", nil)
}

// Describe sends `describe` request to the daemon.
// The Body in the response implement an io.ReadCloser and it's up to the caller to
// close it.
func (c *Client) Describe(ctx context.Context, r *api.DescribeRequest) (io.ReadCloser, error) {
	return c.post(ctx, "/describe", r)
}

// Evaluate sends an `evaluate` request to the daemon. It blocks as long as the
// fail point's rendezvous does.
func (c *Client) Evaluate(ctx context.Context, r *api.EvaluateRequest) (io.ReadCloser, error) {
	return c.post(ctx, "/evaluate", r)
}

// Signals sends a `signals` request to the daemon.
func (c *Client) Signals(ctx context.Context, r *api.SignalsRequest) (io.ReadCloser, error) {
	return c.post(ctx, "/signals", r)
}

func (c *Client) post(ctx context.Context, path string, r interface{}) (io.ReadCloser, error) {
	var body bytes.Buffer
	err := json.NewEncoder(&body).Encode(r)
	if err != nil {
		return nil, err
	}

	return c.request(ctx, "POST", path, bytes.NewReader(body.Bytes()))
}

func parseGeneric(r io.ReadCloser, out io.Writer, fnProgress func(io.Writer, interface{}) error, fnResult func(interface{}) error) error {
	defer r.Close()

	var once sync.Once

	for dec := json.NewDecoder(r); ; {
		var chunk rpc.Chunk
		err := dec.Decode(&chunk)
		if errors.Is(err, io.EOF) {
			return errors.New("response ended without a result")
		}
		if err != nil {
			return err
		}

		switch chunk.Type {
		case rpc.ChunkTypeProgress:
			once.Do(func() {
				fmt.Fprintln(out, aurora.Bold(aurora.Cyan("\n>>> Server output:\n")))
			})

			err = fnProgress(out, chunk.Payload)
			if err != nil {
				return err
			}

		case rpc.ChunkTypeError:
			fmt.Fprintln(out, aurora.Bold(aurora.BrightRed("\n>>> Error:\n")))
			if chunk.Error == nil {
				return errors.New("malformed error chunk")
			}
			return &ResponseError{Code: chunk.Error.Code, Msg: chunk.Error.Msg}

		case rpc.ChunkTypeResult:
			fmt.Fprintln(out, aurora.Bold(aurora.BrightGreen("\n>>> Result:\n")))
			return fnResult(chunk.Payload)

		default:
			return errors.New("unknown message type")
		}
	}
}

func printProgress(out io.Writer, progress interface{}) error {
	s, ok := progress.(string)
	if !ok {
		return fmt.Errorf("unexpected progress payload %T", progress)
	}
	m, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(out, string(m))
	return err
}

func decodeResult(result interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(result)
}

// ParseConfigureResponse parses a response from a `configure` call
func ParseConfigureResponse(r io.ReadCloser, out io.Writer) (api.ConfigureResponse, error) {
	var resp api.ConfigureResponse
	err := parseGeneric(
		r,
		out,
		printProgress,
		func(result interface{}) error {
			return decodeResult(result, &resp)
		},
	)
	return resp, err
}

// ParseListResponse parses a response from a `list` call
func ParseListResponse(r io.ReadCloser, out io.Writer) (api.ListResponse, error) {
	var resp api.ListResponse
	err := parseGeneric(
		r,
		out,
		printProgress,
		func(result interface{}) error {
			return decodeResult(result, &resp)
		},
	)
	return resp, err
}

// ParseDescribeResponse parses a response from a `describe` call
func ParseDescribeResponse(r io.ReadCloser, out io.Writer) (api.DescribeResponse, error) {
	var resp api.DescribeResponse
	err := parseGeneric(
		r,
		out,
		printProgress,
		func(result interface{}) error {
			return decodeResult(result, &resp)
		},
	)
	return resp, err
}

// ParseEvaluateResponse parses a response from an `evaluate` call
func ParseEvaluateResponse(r io.ReadCloser, out io.Writer) (api.EvaluateResponse, error) {
	var resp api.EvaluateResponse
	err := parseGeneric(
		r,
		out,
		printProgress,
		func(result interface{}) error {
			return decodeResult(result, &resp)
		},
	)
	return resp, err
}

// ParseSignalsResponse parses a response from a `signals` or `now` call
func ParseSignalsResponse(r io.ReadCloser, out io.Writer) (api.SignalsResponse, error) {
	var resp api.SignalsResponse
	err := parseGeneric(
		r,
		out,
		printProgress,
		func(result interface{}) error {
			return decodeResult(result, &resp)
		},
	)
	return resp, err
}

func (c *Client) request(ctx context.Context, method string, path string, body io.Reader) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
