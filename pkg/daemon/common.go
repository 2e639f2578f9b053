package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/rpc"
)

// decodeBody decodes the JSON request body into v, keeping numbers as
// json.Number. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func statusOf(err error) int {
	switch failpoint.CodeOf(err) {
	case failpoint.IllegalOperation, failpoint.BadValue, failpoint.TypeMismatch:
		return http.StatusBadRequest
	case failpoint.FailPointSetFailed:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailPointError reports err, mapping configuration error codes to HTTP
// statuses.
func writeFailPointError(ow *rpc.OutputWriter, msg string, err error) {
	code := failpoint.CodeOf(err)
	if code == failpoint.Unknown {
		ow.WriteError(statusOf(err), msg, "err", err)
		return
	}
	ow.WriteCodedError(statusOf(err), code.String(), msg, "err", err)
}

func unknownFailPoint(ow *rpc.OutputWriter, name string) {
	ow.WriteCodedError(http.StatusNotFound, failpoint.FailPointSetFailed.String(), "Unknown fail point: "+name)
}
