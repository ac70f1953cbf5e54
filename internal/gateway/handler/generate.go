package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"uiagent/internal/pipeline"
	"uiagent/internal/types"
)

type statelessRequest struct {
	Intent       string          `json:"intent"`
	PreviousPlan json.RawMessage `json:"previousPlan"`
	PreviousCode *string         `json:"previousCode"`
}

type statelessResponse struct {
	Plan        types.Plan `json:"plan"`
	Validation  string     `json:"validation"`
	Code        string     `json:"code"`
	Explanation string     `json:"explanation"`
	Version     int64      `json:"version"`
}

// generateStateless runs one pipeline pass with the caller-supplied previous
// state. Any failure is a 500 carrying the error message.
func (h *Handler) generateStateless(w http.ResponseWriter, r *http.Request) {
	var in statelessRequest
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Intent) == "" {
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}
	req := pipeline.Request{Intent: in.Intent, PreviousPlan: previousPlan(in.PreviousPlan), PreviousCode: in.PreviousCode}

	h.log.Info("generating ui", zap.String("intent", in.Intent))
	turn, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.log.Error("generate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statelessResponse{
		Plan:        turn.Plan,
		Validation:  turn.Validation,
		Code:        turn.Code,
		Explanation: turn.Explanation,
		Version:     turn.Version,
	})
}

// previousPlan accepts any JSON object, including a sentinel. Other values
// are treated as absent.
func previousPlan(raw json.RawMessage) *types.Plan {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var p types.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p
}
