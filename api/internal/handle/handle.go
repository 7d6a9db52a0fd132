// Package handle exposes the pipeline over HTTP.
package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/interpret"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/store"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

type Interpreter interface {
	Interpret(ctx context.Context, transcript string) (interpret.Result, error)
}

// RunLister reads the run ledger.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]store.RunRow, error)
}

type Handle struct {
	runner Runner
	interp Interpreter
	runs   RunLister // optional
	log    logrus.FieldLogger

	// Timeout bounds one request end to end.
	Timeout time.Duration
	// MaxBody caps the request body in bytes.
	MaxBody int64
}

// DefaultMaxBody fits a 20 MB photo after base64 encoding.
const DefaultMaxBody = 28 << 20

func New(runner Runner, interp Interpreter, runs RunLister, log logrus.FieldLogger) *Handle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handle{runner: runner, interp: interp, runs: runs, log: log, Timeout: 180 * time.Second, MaxBody: DefaultMaxBody}
}

// Register mounts the API routes on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/quiz/publish", h.Publish)
	mux.HandleFunc("/v1/quiz/interpret", h.Interpret)
	mux.HandleFunc("/v1/quiz/runs", h.Runs)
}

// decodeBody reads one JSON value from a size-limited body and writes
// the error response itself when it fails.
func (h *Handle) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, h.MaxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("body exceeds %d bytes", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
