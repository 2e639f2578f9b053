package rpctest

import (
	"net/http/httptest"
	"strings"

	"github.com/testground/failpoint/pkg/rpc"
)

// NewRecordedOutputWriter returns an OutputWriter where the response is recorded.
func NewRecordedOutputWriter(reqID string) (*httptest.ResponseRecorder, *rpc.OutputWriter) {
	req := httptest.NewRequest("GET", "/", strings.NewReader(""))
	req.Header.Add("X-Request-ID", reqID)
	rec := httptest.NewRecorder()
	return rec, rpc.NewOutputWriter(rec, req)
}
