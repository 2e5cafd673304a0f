// Package api implements the storysize REST API.
// It exposes estimation, platform detection and hours conversion over JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/storysize/storysize/internal/pipeline"
	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/surface"
)

// maxBodyBytes bounds request bodies; requirement text above this is
// truncated by the pipeline anyway.
const maxBodyBytes = 1 << 20

// Handler is the top-level API handler.
type Handler struct {
	svc    *pipeline.Service
	hours  *hours.Estimator
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *pipeline.Service, est *hours.Estimator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, hours: est, logger: logger}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/estimate", h.handleEstimate)
	mux.HandleFunc("POST /api/v1/detect", h.handleDetect)
	mux.HandleFunc("POST /api/v1/hours", h.handleHours)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type estimateRequest struct {
	Text       string   `json:"text"`
	Platforms  []string `json:"platforms,omitempty"`
	SkipImpact bool     `json:"skip_impact,omitempty"`
	// Format selects the response body: json (default), markdown or html.
	Format string `json:"format,omitempty"`
}

type detectRequest struct {
	Text      string   `json:"text"`
	Platforms []string `json:"platforms,omitempty"`
}

type hoursRequest struct {
	Points int    `json:"points"`
	Model  string `json:"model,omitempty"`
}

type hoursResponse struct {
	Points      int                   `json:"points"`
	Models      []hours.ModelEstimate `json:"models"`
	Recommended hours.HoursRange      `json:"recommended"`
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	force, err := parsePlatforms(req.Platforms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := req.Format
	if format == "" {
		format = surface.FormatJSON
	}
	renderer, err := surface.ForFormat(format)
	if err != nil || format == surface.FormatTerminal {
		writeError(w, http.StatusBadRequest, "format must be json, markdown or html")
		return
	}

	est, err := h.svc.Run(r.Context(), pipeline.Request{
		Text:       req.Text,
		Force:      force,
		SkipImpact: req.SkipImpact,
	})
	if err != nil {
		if errors.Is(err, estimation.ErrNoPlatformScored) {
			h.logger.Warn("estimation failed for every platform", zap.Error(err))
			writeError(w, http.StatusBadGateway, "no platform could be scored")
			return
		}
		h.logger.Error("estimation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "estimation failed")
		return
	}

	if format == surface.FormatJSON {
		writeJSON(w, http.StatusOK, est)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if err := renderer.Render(w, est); err != nil {
		h.logger.Warn("render response", zap.Error(err))
	}
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !decode(w, r, &req) {
		return
	}
	force, err := parsePlatforms(req.Platforms)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	det := h.svc.Detect(&pipeline.Inputs{Text: req.Text}, force)
	writeJSON(w, http.StatusOK, det)
}

func (h *Handler) handleHours(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if !decode(w, r, &req) {
		return
	}

	models, err := h.hours.EstimateAll(req.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Model != "" {
		if _, ok := hours.Lookup(req.Model); !ok {
			writeError(w, http.StatusBadRequest, "unknown hours model "+req.Model)
			return
		}
		for _, m := range models {
			if m.Model == req.Model {
				models = []hours.ModelEstimate{m}
				break
			}
		}
	}

	rec, err := h.hours.Recommended(req.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hoursResponse{Points: req.Points, Models: models, Recommended: rec})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parsePlatforms(names []string) ([]platform.Platform, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return platform.ParseList(strings.Join(names, ","))
}

func contentType(format string) string {
	switch format {
	case surface.FormatMarkdown, "md":
		return "text/markdown; charset=utf-8"
	case surface.FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
