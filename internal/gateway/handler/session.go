package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"uiagent/internal/archive"
	"uiagent/internal/artifact"
	"uiagent/internal/session"
)

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type intentRequest struct {
	Intent string `json:"intent"`
}

// HistoryEntry is the display form of one turn.
type HistoryEntry struct {
	UserIntent  string `json:"userIntent"`
	Explanation string `json:"explanation"`
	Version     int64  `json:"version"`
}

type sessionView struct {
	session.Result
	History []HistoryEntry `json:"history"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}

func (h *Handler) listComponents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Descriptors())
}

func (h *Handler) createSession(w http.ResponseWriter, _ *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: s.ID})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.sessions.Current(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	turns := s.History.Turns()
	view := sessionView{Result: res, History: make([]HistoryEntry, 0, len(turns))}
	for _, t := range turns {
		view.History = append(view.History, HistoryEntry{UserIntent: t.UserIntent, Explanation: t.Explanation, Version: t.Version})
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) generateInSession(w http.ResponseWriter, r *http.Request) {
	var in intentRequest
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Intent) == "" {
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}
	res, err := h.sessions.Generate(r.Context(), chi.URLParam(r, "id"), in.Intent)
	if err != nil {
		h.log.Warn("session generate failed", zap.String("session_id", chi.URLParam(r, "id")), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) rollbackSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Rollback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sessions.Get(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if h.archive == nil {
		writeJSON(w, http.StatusOK, []archive.Event{})
		return
	}
	events, err := h.archive.Events(r.Context(), id)
	if err != nil {
		h.log.Error("list archive events", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type artifactEntry struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

func (h *Handler) listArtifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.artifacts == nil {
		writeJSON(w, http.StatusOK, []artifactEntry{})
		return
	}
	paths, err := h.artifacts.List(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]artifactEntry, 0, len(paths))
	for _, p := range paths {
		u, err := h.artifacts.URL(r.Context(), id, p)
		if err != nil {
			h.log.Warn("artifact url", zap.String("path", p), zap.Error(err))
		}
		out = append(out, artifactEntry{Path: p, URL: u})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		writeError(w, http.StatusNotFound, artifact.ErrNotFound.Error())
		return
	}
	content, err := h.artifacts.Get(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "*"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, artifact.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	ct := "text/plain; charset=utf-8"
	if strings.HasSuffix(chi.URLParam(r, "*"), ".json") {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(content)
}
