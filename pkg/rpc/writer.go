package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/docker/docker/pkg/ioutils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/testground/failpoint/pkg/logging"
)

// OutputWriter streams chunks to a client. Log lines emitted through its
// SugaredLogger at INFO and above are forwarded to the client as progress
// chunks.
type OutputWriter struct {
	sync.Mutex
	*zap.SugaredLogger
	pw *progressWriter

	out     io.Writer
	status  func(int)
	started *bool
}

func NewOutputWriter(w http.ResponseWriter, r *http.Request) *OutputWriter {
	w.Header().Set("Content-Type", "application/json")

	httpWriter := ioutils.NewWriteFlusher(w)

	// progressWriter will emit log output as progress messages.
	progressWriter := &progressWriter{}

	writeSyncer := zapcore.Lock(zapcore.AddSync(progressWriter))

	// this logger has two sinks: the global core and the writeSyncer, wired to
	// the HTTP response.
	logger := logging.NewLogger(writeSyncer).With(zap.String("req_id", r.Header.Get("X-Request-ID")))

	ow := &OutputWriter{
		SugaredLogger: logger.Sugar(),
		out:           httpWriter,
		pw:            progressWriter,
		status:        w.WriteHeader,
		started:       new(bool),
	}

	// we need to wire this back for the lock.
	progressWriter.ow = ow
	return ow
}

// Discard returns an OutputWriter that drops everything.
func Discard() *OutputWriter {
	pw := &progressWriter{}
	ow := &OutputWriter{
		SugaredLogger: zap.NewNop().Sugar(),
		out:           io.Discard,
		pw:            pw,
		status:        func(int) {},
		started:       new(bool),
	}
	pw.ow = ow
	return ow
}

type progressWriter struct {
	ow *OutputWriter
}

var _ io.Writer = (*progressWriter)(nil)

// Write on the progressWriter wraps the incoming write into a progress message.
func (w *progressWriter) Write(p []byte) (n int, err error) {
	if p == nil {
		return 0, nil
	}

	msg := Chunk{Type: ChunkTypeProgress, Payload: p}
	json, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	if _, err := w.ow.write(http.StatusOK, json); err != nil {
		return 0, err
	}
	return len(p), nil
}

// write sends b, committing status first if nothing has been sent yet.
func (ow *OutputWriter) write(status int, b []byte) (int, error) {
	ow.Lock()
	defer ow.Unlock()

	ow.commitLocked(status)
	return ow.out.Write(b)
}

func (ow *OutputWriter) commit(status int) {
	ow.Lock()
	defer ow.Unlock()

	ow.commitLocked(status)
}

func (ow *OutputWriter) commitLocked(status int) {
	if !*ow.started {
		*ow.started = true
		ow.status(status)
	}
}

// infoWriter implements io.Writer, and turns all writes into Info log
// statements in the underlying logger.
type infoWriter struct{ ow *OutputWriter }

var _ io.Writer = (*infoWriter)(nil)

func (iw *infoWriter) Write(p []byte) (n int, err error) {
	iw.ow.Info(string(p))
	return len(p), nil
}

// InfoWriter returns an io.Writer that turns all writes into Info log
// statements in the underlying logger.
func (ow *OutputWriter) InfoWriter() io.Writer {
	return &infoWriter{ow}
}

// With returns a new OutputWriter, replacing the SugaredLogger with the result
// from delegating to SugaredLogger.With.
func (ow *OutputWriter) With(args ...interface{}) *OutputWriter {
	return &OutputWriter{
		SugaredLogger: ow.SugaredLogger.With(args...),
		out:           ow.out,
		pw:            ow.pw,
		status:        ow.status,
		started:       ow.started,
	}
}

func (ow *OutputWriter) WriteProgress(b []byte) (n int, err error) {
	return ow.pw.Write(b)
}

func (ow *OutputWriter) WriteResult(res interface{}) {
	msg := Chunk{Type: ChunkTypeResult, Payload: res}
	json, err := json.Marshal(msg)
	if err != nil {
		logging.S().Errorw("could not write result", "err", err)
		ow.WriteError(http.StatusInternalServerError, "could not encode result", "err", err)
		return
	}

	if _, err = ow.write(http.StatusOK, json); err != nil {
		logging.S().Errorw("could not write result", "err", err)
	}
}

// WriteError sends an error chunk. status is the HTTP status of the response
// when no other chunk has been sent yet.
func (ow *OutputWriter) WriteError(status int, message string, keysAndValues ...interface{}) {
	ow.writeError(status, "", message, keysAndValues...)
}

// WriteCodedError is WriteError carrying a symbolic error code.
func (ow *OutputWriter) WriteCodedError(status int, code string, message string, keysAndValues ...interface{}) {
	ow.writeError(status, code, message, keysAndValues...)
}

func (ow *OutputWriter) writeError(status int, code string, message string, keysAndValues ...interface{}) {
	// the warning below is forwarded as a progress chunk, which would
	// otherwise commit a 200.
	ow.commit(status)
	ow.Warnw(message, keysAndValues...)

	if len(keysAndValues) > 0 {
		b := &strings.Builder{}
		for i := 0; i+1 < len(keysAndValues); i = i + 2 {
			fmt.Fprintf(b, "%s: %s;", keysAndValues[i], keysAndValues[i+1])
		}
		if kvs := b.String(); kvs != "" {
			message = message + "; " + kvs[:len(kvs)-1]
		}
	}

	pld := Chunk{Type: ChunkTypeError, Error: &Error{Msg: message, Code: code}}
	json, err := json.Marshal(pld)
	if err != nil {
		logging.S().Errorw("could not write error response", "err", err)
		return
	}

	if _, err = ow.write(status, json); err != nil {
		logging.S().Errorw("could not write error response", "err", err)
	}
}

func (ow *OutputWriter) Flush() {
	if f, ok := ow.out.(http.Flusher); ok {
		f.Flush()
	}
}
