package handle

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"quizdoc/api/internal/imaging"
	"quizdoc/api/internal/interpret"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/util"
)

type PublishRequest struct {
	File         string `json:"file,omitempty"`
	ImageB64     string `json:"image_b64"`
	Number       int    `json:"number,omitempty"`
	ParentPageID string `json:"parent_page_id,omitempty"`
}

type PublishResponse struct {
	RunID    string              `json:"run_id"`
	State    pipeline.State      `json:"state"`
	Trace    []pipeline.State    `json:"trace"`
	Attempts int                 `json:"attempts,omitempty"`
	BlockID  string              `json:"block_id,omitempty"`
	Question *interpret.Question `json:"question,omitempty"`
	Error    *ErrorBody          `json:"error,omitempty"`
}

type ErrorBody struct {
	Stage    pipeline.State `json:"stage,omitempty"`
	Category string         `json:"category"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
}

func (h *Handle) Publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req PublishRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.ImageB64))
	if err != nil || len(data) == 0 {
		http.Error(w, "bad image_b64", http.StatusBadRequest)
		return
	}
	if ct := util.SniffMimeHTTP(data); !strings.HasPrefix(ct, "image/") {
		http.Error(w, "image_b64 is not an image ("+ct+")", http.StatusUnsupportedMediaType)
		return
	}
	if req.Number < 0 {
		http.Error(w, "number must be >= 0", http.StatusBadRequest)
		return
	}
	if req.File == "" {
		req.File = "http:upload"
	}

	raw, err := imaging.Decode(req.File, data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, PublishResponse{
			State: pipeline.Failed,
			Error: &ErrorBody{Stage: pipeline.Normalizing, Category: "ImageError", Kind: string(imaging.Unreadable), Message: err.Error()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	out, err := h.runner.Run(ctx, pipeline.Request{
		File:         req.File,
		Image:        &raw,
		Number:       req.Number,
		ParentPageID: req.ParentPageID,
	})
	resp := PublishResponse{
		RunID:    out.RunID,
		State:    out.State,
		Trace:    out.Trace,
		Attempts: out.Attempts,
		BlockID:  out.BlockID,
		Question: out.Question,
	}
	if err != nil {
		body, code := errorBody(err)
		resp.Error = body
		h.log.WithError(err).WithField("run_id", out.RunID).Warn("publish request failed")
		writeJSON(w, code, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorBody maps a run failure to its JSON form and HTTP status.
func errorBody(err error) (*ErrorBody, int) {
	var f *pipeline.Failure
	if !errors.As(err, &f) {
		return &ErrorBody{Category: "Error", Kind: "Unknown", Message: err.Error()}, http.StatusInternalServerError
	}
	body := &ErrorBody{Stage: f.Stage, Category: f.Category(), Kind: f.Kind(), Message: f.Err.Error()}
	return body, statusFor(body.Category, body.Kind)
}

func statusFor(category, kind string) int {
	switch category {
	case "ImageError", "OcrError":
		if kind == "EngineFailed" {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case "InterpretError":
		if kind == "ModelUnavailable" {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case "PublishError":
		if kind == "RateLimited" {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case "Cancelled":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
