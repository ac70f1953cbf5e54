package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"uiagent/internal/archive"
	"uiagent/internal/artifact"
	"uiagent/internal/pipeline"
	"uiagent/internal/registry"
	"uiagent/internal/session"
)

// maxBodyBytes bounds request bodies; previous code can be large.
const maxBodyBytes = 1 << 20

// Handler serves the REST surface.
type Handler struct {
	sessions  *session.Controller
	runner    session.Runner
	reg       *registry.Registry
	archive   archive.Archive
	artifacts artifact.Store
	log       *zap.Logger
}

type Deps struct {
	Sessions *session.Controller
	// Runner serves the stateless generate route.
	Runner   session.Runner
	Registry *registry.Registry
	// Archive and Artifacts are optional.
	Archive   archive.Archive
	Artifacts artifact.Store
	Logger    *zap.Logger
}

func New(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sessions:  d.Sessions,
		runner:    d.Runner,
		reg:       d.Registry,
		archive:   d.Archive,
		artifacts: d.Artifacts,
		log:       log,
	}
}

// Routes mounts the REST endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.generateStateless)
		r.Get("/registry", h.listComponents)
		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.currentSession)
			r.Post("/generate", h.generateInSession)
			r.Post("/rollback", h.rollbackSession)
			r.Get("/events", h.sessionEvents)
			r.Get("/artifacts", h.listArtifacts)
			r.Get("/artifacts/*", h.getArtifact)
		})
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps controller and pipeline errors onto session route statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
