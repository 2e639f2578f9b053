package daemon

import (
	"net/http"

	"github.com/testground/failpoint/pkg/api"
	"github.com/testground/failpoint/pkg/rpc"
)

func (srv *Daemon) listHandler(w http.ResponseWriter, r *http.Request) {
	log := srv.log.With("ruid", r.Header.Get("X-Request-ID"))

	log.Debugw("handle request", "command", "list")
	defer log.Debugw("request handled", "command", "list")

	ow := rpc.NewOutputWriter(w, r)
	ow.WriteResult(srv.catalog.Describe())
}

func (srv *Daemon) describeHandler(w http.ResponseWriter, r *http.Request) {
	log := srv.log.With("ruid", r.Header.Get("X-Request-ID"))

	log.Debugw("handle request", "command", "describe")
	defer log.Debugw("request handled", "command", "describe")

	ow := rpc.NewOutputWriter(w, r)

	var req api.DescribeRequest
	if err := decodeBody(r, &req); err != nil {
		ow.WriteError(http.StatusBadRequest, "cannot json decode request body", "err", err)
		return
	}

	fp, ok := srv.catalog.Lookup(req.Name)
	if !ok {
		unknownFailPoint(ow, req.Name)
		return
	}
	ow.WriteResult(fp.Diagnostics())
}
