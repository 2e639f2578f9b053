package daemon

import (
	"net/http"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/rpc"
)

func (srv *Daemon) signalsHandler(w http.ResponseWriter, r *http.Request) {
	log := srv.log.With("ruid", r.Header.Get("X-Request-ID"))

	log.Debugw("handle request", "command", "signals")
	defer log.Debugw("request handled", "command", "signals")

	ow := rpc.NewOutputWriter(w, r)

	var req api.SignalsRequest
	if err := decodeBody(r, &req); err != nil {
		ow.WriteError(http.StatusBadRequest, "cannot json decode request body", "err", err)
		return
	}

	signals := srv.catalog.Signals()
	if req.Reset {
		signals.Reset()
		ow.Infow("cleared all signals")
	} else if len(req.Clear) > 0 {
		signals.Clear(req.Clear...)
		ow.Infow("cleared signals", "signals", req.Clear)
	}

	ow.WriteResult(api.SignalsResponse{Active: signals.Active()})
}
