package handle

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"quizdoc/api/internal/interpret"
)

type InterpretRequest struct {
	Transcript string `json:"transcript"`
}

type InterpretResponse struct {
	Question   *interpret.Question `json:"question,omitempty"`
	Attempts   int                 `json:"attempts"`
	Violations []string            `json:"violations,omitempty"`
	Error      *ErrorBody          `json:"error,omitempty"`
}

// Interpret runs only the model step on a transcript the caller already has.
func (h *Handle) Interpret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req InterpretRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		http.Error(w, "transcript is empty", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	res, err := h.interp.Interpret(ctx, req.Transcript)
	if err != nil {
		resp := InterpretResponse{Attempts: res.Attempts}
		var ie *interpret.Error
		if errors.As(err, &ie) {
			resp.Attempts = ie.Attempts
			for _, v := range ie.Violations {
				resp.Violations = append(resp.Violations, v.String())
			}
			resp.Error = &ErrorBody{Category: ie.Category(), Kind: ie.Kind(), Message: ie.Error()}
			writeJSON(w, statusFor(ie.Category(), ie.Kind()), resp)
			return
		}
		resp.Error = &ErrorBody{Category: "Cancelled", Kind: "Cancelled", Message: err.Error()}
		if errors.Is(err, context.DeadlineExceeded) {
			resp.Error.Kind = "DeadlineExceeded"
		}
		writeJSON(w, http.StatusGatewayTimeout, resp)
		return
	}
	q := res.Question
	writeJSON(w, http.StatusOK, InterpretResponse{Question: &q, Attempts: res.Attempts})
}
