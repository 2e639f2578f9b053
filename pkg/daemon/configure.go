package daemon

import (
	"net/http"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/failpoint"
	"github.com/testground/failpoint/pkg/rpc"
)

func (srv *Daemon) configureHandler(w http.ResponseWriter, r *http.Request) {
	log := srv.log.With("ruid", r.Header.Get("X-Request-ID"))

	log.Debugw("handle request", "command", "configure")
	defer log.Debugw("request handled", "command", "configure")

	ow := rpc.NewOutputWriter(w, r)

	var req api.ConfigureRequest
	if err := decodeBody(r, &req); err != nil {
		ow.WriteError(http.StatusBadRequest, "cannot json decode request body", "err", err)
		return
	}

	name := req.Name()
	if name == "" {
		ow.WriteCodedError(http.StatusBadRequest, failpoint.TypeMismatch.String(), "'configureFailPoint' must name a fail point")
		return
	}
	doc := failpoint.Document(req)

	if name == failpoint.NameNow {
		if err := srv.catalog.SyncNow(r.Context(), doc); err != nil {
			writeFailPointError(ow, "inline rendezvous failed", err)
			return
		}
		ow.WriteResult(api.SignalsResponse{Active: srv.catalog.Signals().Active()})
		return
	}

	fp, err := srv.catalog.Configure(name, doc)
	if err != nil {
		writeFailPointError(ow, "failed to configure fail point", err)
		return
	}

	if err := srv.persist(name, fp.Mode(), doc); err != nil {
		// the configuration is in effect; it just will not survive a restart.
		ow.Warnw("failed to persist configuration", "name", name, "err", err)
	}

	ow.WriteResult(fp.Diagnostics())
}
