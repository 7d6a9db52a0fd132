package handle

import (
	"net/http"
	"strconv"
	"time"
)

type RunView struct {
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	File        string    `json:"file"`
	State       string    `json:"state"`
	FailedStage string    `json:"failed_stage,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Attempts    int       `json:"attempts"`
	ParentPage  string    `json:"parent_page,omitempty"`
	BlockID     string    `json:"block_id,omitempty"`
}

func (h *Handle) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	if h.runs == nil {
		http.Error(w, "run ledger is not configured", http.StatusNotFound)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be in 1..500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rows, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("list runs")
		http.Error(w, "ledger error", http.StatusInternalServerError)
		return
	}
	out := make([]RunView, 0, len(rows))
	for _, row := range rows {
		out = append(out, RunView{
			RunID:       row.RunID,
			CreatedAt:   row.CreatedAt,
			File:        row.File,
			State:       row.State,
			FailedStage: row.FailedStage,
			ErrorKind:   row.ErrorKind,
			Attempts:    row.Attempts,
			ParentPage:  row.ParentPage,
			BlockID:     row.BlockID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
