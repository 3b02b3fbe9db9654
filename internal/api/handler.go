package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opensource-finance/ringscope/internal/bus"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/focus"
	"github.com/opensource-finance/ringscope/internal/ingest"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/render"
	"github.com/opensource-finance/ringscope/internal/render/socket"
	"github.com/opensource-finance/ringscope/internal/repository"
	"github.com/opensource-finance/ringscope/internal/style"
	"github.com/opensource-finance/ringscope/internal/view"
)

// DownloadName is the file name of a downloaded report.
const DownloadName = "analysis_output.json"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Deps holds the components the API serves.
type Deps struct {
	Repo        domain.Repository
	Cache       domain.Cache
	Bus         domain.EventBus
	Projections *projector.Cached
	Views       *view.Registry
	Sheet       *style.Sheet
	View        domain.ViewConfig
	Version     string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	projections *projector.Cached
	views       *view.Registry
	sheet       *style.Sheet
	viewCfg     domain.ViewConfig
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		repo:        deps.Repo,
		cache:       deps.Cache,
		bus:         deps.Bus,
		projections: deps.Projections,
		views:       deps.Views,
		sheet:       deps.Sheet,
		viewCfg:     deps.View,
		version:     deps.Version,
	}
	if h.projections == nil {
		h.projections = projector.NewCached(deps.Cache, deps.View.ProjectionTTL)
	}
	if h.views == nil {
		h.views = view.NewRegistry()
	}
	if h.sheet == nil {
		h.sheet = style.Default()
	}
	return h
}

// AnalysisResponse is the response for POST /analyses.
type AnalysisResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Summary   domain.Summary `json:"summary"`
	Rings     int            `json:"rings"`
	Edges     int            `json:"edges"`
	Metadata  struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// Health returns the health status of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"views":   h.views.Len(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// CreateAnalysis handles POST /analyses. The body is an upload envelope
// or a bare analysis result.
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not configured",
		})
		return
	}

	up, err := ingest.DecodeUpload(http.MaxBytesReader(w, r.Body, ingest.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	a := &domain.Analysis{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Name:     up.Name,
		Result:   up.Result,
	}
	if err := h.repo.SaveAnalysis(ctx, tenantID, a); err != nil {
		slog.Error("failed to save analysis",
			"tenant_id", tenantID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save analysis",
		})
		return
	}

	if h.bus != nil {
		ev := domain.AnalysisEvent{TenantID: tenantID, AnalysisID: a.ID, TraceID: traceID}
		if err := bus.PublishJSON(ctx, h.bus, domain.FanInTenant, domain.TopicAnalysisIngested, ev); err != nil {
			slog.Warn("failed to publish analysis ingested",
				"analysis_id", a.ID,
				"error", err,
			)
		}
	}

	resp := AnalysisResponse{
		ID:        a.ID,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
		Summary:   a.Result.Summary,
		Rings:     len(a.Result.FraudRings),
		Edges:     len(a.Result.Graph.Edges),
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	slog.Info("analysis stored",
		"analysis_id", a.ID,
		"tenant_id", tenantID,
		"accounts", len(a.Result.SuspiciousAccounts),
		"rings", resp.Rings,
		"edges", resp.Edges,
	)

	writeJSON(w, http.StatusCreated, resp)
}

// ListAnalyses handles GET /analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not configured",
		})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	summaries, err := h.repo.ListAnalyses(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list analyses", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}
	if summaries == nil {
		summaries = []*domain.AnalysisSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": summaries,
		"count":    len(summaries),
	})
}

// GetAnalysis handles GET /analyses/{id}. With ?download=1 the result is
// served as a pretty-printed attachment.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		body, err := json.MarshalIndent(a.Result, "", "  ")
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to encode analysis",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadName+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// DeleteAnalysis handles DELETE /analyses/{id}. Cached projections are
// evicted and views showing the analysis are cleared.
func (h *Handler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if err := h.repo.DeleteAnalysis(ctx, tenantID, a.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "analysis not found",
			})
			return
		}
		slog.Error("failed to delete analysis", "analysis_id", a.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete analysis",
		})
		return
	}

	h.projections.Invalidate(ctx, tenantID, a)
	cleared := h.views.Unload(ctx, a.ID)

	if h.bus != nil {
		ev := domain.AnalysisEvent{
			TenantID:   tenantID,
			AnalysisID: a.ID,
			TraceID:    GetTraceID(ctx),
			RingIDs:    ringIDs(a.Result),
		}
		if err := bus.PublishJSON(ctx, h.bus, domain.FanInTenant, domain.TopicAnalysisDeleted, ev); err != nil {
			slog.Warn("failed to publish analysis deleted",
				"analysis_id", a.ID,
				"error", err,
			)
		}
	}

	slog.Info("analysis deleted",
		"analysis_id", a.ID,
		"tenant_id", tenantID,
		"views_cleared", cleared,
	)
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /analyses/{id}/graph?ring=. With ?format=elements
// the styled engine input is returned instead of the bare projection.
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	ring := r.URL.Query().Get("ring")

	g := h.projections.Project(ctx, GetTenantID(ctx), a, ring)

	if r.URL.Query().Get("format") == "elements" {
		writeJSON(w, http.StatusOK, render.Spec{
			Elements: h.sheet.Elements(g),
			Style:    h.sheet.Stylesheet(),
			Layout:   h.viewCfg.Layout,
		})
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListRings handles GET /analyses/{id}/rings?active=.
func (h *Handler) ListRings(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}

	sel := focus.NewSelector(a.Result.FraudRings)
	if active := r.URL.Query().Get("active"); active != "" {
		sel.Select(active)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"actions": sel.Actions(),
		"active":  sel.Active(),
	})
}

// View handles GET /analyses/{id}/view. The connection is upgraded to a
// websocket and the client becomes the rendering engine of a live view.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "error", err)
		return
	}

	engine := socket.New(ws)
	v := view.New(engine, engine, h.sheet, h.viewCfg,
		view.WithBus(h.bus, tenantID),
		view.WithProjector(func(ctx context.Context, _ string, _ *domain.AnalysisResult, ring string) *domain.ProjectedGraph {
			return h.projections.Project(ctx, tenantID, a, ring)
		}),
		view.WithObserver(func(s view.Snapshot) {
			_ = engine.SendState(s)
		}),
	)
	h.views.Add(v)
	defer func() { _ = h.views.Remove(v.ID()) }()

	slog.Info("view opened",
		"view_id", v.ID(),
		"analysis_id", a.ID,
		"tenant_id", tenantID,
	)

	if err := v.Load(ctx, a.ID, a.Result); err != nil {
		_ = engine.Send(socket.Frame{Type: socket.FrameError, Error: err.Error()})
		return
	}

	err = engine.Serve(ctx, func(ctx context.Context, ring string) {
		if err := v.SelectRing(ctx, ring); err != nil {
			_ = engine.Send(socket.Frame{Type: socket.FrameError, Error: err.Error()})
		}
	})
	if err != nil {
		slog.Warn("view connection closed", "view_id", v.ID(), "error", err)
		return
	}
	slog.Info("view closed", "view_id", v.ID())
}

// loadAnalysis fetches the analysis named in the path, writing the error
// response itself when it cannot.
func (h *Handler) loadAnalysis(w http.ResponseWriter, r *http.Request) (*domain.Analysis, bool) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not configured",
		})
		return nil, false
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return nil, false
	}

	a, err := h.repo.GetAnalysis(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "analysis not found",
			})
			return nil, false
		}
		slog.Error("failed to get analysis", "analysis_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get analysis",
		})
		return nil, false
	}
	return a, true
}

func ringIDs(result *domain.AnalysisResult) []string {
	if result == nil {
		return nil
	}
	ids := make([]string, 0, len(result.FraudRings))
	for _, ring := range result.FraudRings {
		ids = append(ids, ring.RingID)
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
