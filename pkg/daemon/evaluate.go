package daemon

import (
	"net/http"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/rpc"
)

// evaluateHandler runs the hot path once on behalf of a participant that is
// not linked into this process. It blocks for the rendezvous, if any, until
// the request is cancelled.
func (srv *Daemon) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	log := srv.log.With("ruid", r.Header.Get("X-Request-ID"))

	log.Debugw("handle request", "command", "evaluate")
	defer log.Debugw("request handled", "command", "evaluate")

	ow := rpc.NewOutputWriter(w, r)

	var req api.EvaluateRequest
	if err := decodeBody(r, &req); err != nil {
		ow.WriteError(http.StatusBadRequest, "cannot json decode request body", "err", err)
		return
	}

	fp, ok := srv.catalog.Lookup(req.Name)
	if !ok {
		unknownFailPoint(ow, req.Name)
		return
	}

	ctx := r.Context()
	if req.Seed != nil {
		ctx = failpoint.WithRandomSeed(ctx, *req.Seed)
	}

	res := fp.Evaluate(ctx, nil)
	resp := api.EvaluateResponse{
		Fired:   res.Fired(),
		Outcome: res.Outcome.String(),
		Data:    res.Data,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	ow.WriteResult(resp)
}
