package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/loader"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	flags       *risk.Engine
	analysisCfg domain.AnalysisConfig
	version     string
	async       bool
}

// NewHandler creates a new API handler. With async set, POST /runs
// publishes to the event bus instead of running the analysis inline.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, flags *risk.Engine, analysisCfg domain.AnalysisConfig, version string, async bool) *Handler {
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		flags:       flags,
		analysisCfg: analysisCfg,
		version:     version,
		async:       async,
	}
}

// AnalyzeRequest is the request body for POST /runs.
type AnalyzeRequest struct {
	Dataset string `json:"dataset"` // CSV file path
	RunID   string `json:"runId,omitempty"`
}

// AnalyzeResponse is the response for an async POST /runs.
type AnalyzeResponse struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	TraceID string `json:"traceId,omitempty"`
}

// CreateRun handles POST /runs requests.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Dataset == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dataset is required",
		})
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	// Async mode hands the dataset to the worker pool.
	if h.async && h.bus != nil {
		msg := worker.DatasetMessage{
			RunID:    runID,
			TenantID: tenantID,
			Dataset:  req.Dataset,
			TraceID:  traceID,
		}
		payload, _ := json.Marshal(msg)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicDatasetIngested, payload); err != nil {
			slog.Error("failed to publish dataset message", "run_id", runID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to schedule analysis",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, AnalyzeResponse{
			RunID:   runID,
			Status:  "scheduled",
			TraceID: traceID,
		})
		return
	}

	records, err := loader.ReadFile(req.Dataset)
	if err != nil {
		slog.Error("failed to load dataset", "dataset", req.Dataset, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to load dataset: " + err.Error(),
		})
		return
	}

	fingerprint := pipeline.Fingerprint(records, h.analysisCfg)

	var report *domain.Report
	if h.cache != nil {
		if cached, err := h.cache.GetReport(ctx, tenantID, fingerprint); err == nil && cached != nil {
			report = cached
		}
	}

	if report == nil {
		report, err = pipeline.Run(ctx, records, h.analysisCfg)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidConfig) {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": err.Error(),
				})
				return
			}
			slog.Error("analysis failed", "run_id", runID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "analysis failed",
			})
			return
		}
		if h.cache != nil {
			_ = h.cache.SetReport(ctx, tenantID, fingerprint, report, time.Hour)
		}
	}

	run := &domain.AnalysisRun{
		ID:          runID,
		TenantID:    tenantID,
		Dataset:     req.Dataset,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
		Config:      h.analysisCfg,
		Report:      report,
	}

	if h.repo != nil {
		if err := h.repo.SaveRun(ctx, tenantID, run); err != nil {
			slog.Error("failed to save run", "run_id", runID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(run)
		_ = h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload)
	}

	slog.Info("analysis run completed",
		"run_id", runID,
		"tenant_id", tenantID,
		"records", report.Metrics.TotalTransactions,
		"clusters", len(report.Clusters),
		"rings", len(report.Rings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusCreated, run)
}

// ListRuns handles GET /runs requests.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.repo.ListRuns(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /runs/{id} requests.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// DeleteRun handles DELETE /runs/{id} requests.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRun(ctx, tenantID, runID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "run not found",
			})
			return
		}
		slog.Error("failed to delete run", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete run",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "run deleted",
	})
}

// ClusterView is a cluster summary annotated with its risk level and
// any matched flag rules.
type ClusterView struct {
	domain.ClusterAnalysis
	RiskLevel risk.Level `json:"riskLevel"`
	Flags     []string   `json:"flags,omitempty"`
}

// GetClusters handles GET /runs/{id}/clusters requests.
func (h *Handler) GetClusters(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	views := make([]ClusterView, 0, len(run.Report.Clusters))
	for _, c := range run.Report.Clusters {
		view := ClusterView{
			ClusterAnalysis: c,
			RiskLevel:       risk.Classify(c.FraudRate, run.Config),
		}
		if h.flags != nil {
			view.Flags = h.flags.Evaluate(risk.ClusterStats(c))
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clusters": views,
		"count":    len(views),
	})
}

// RingView is a fraud ring annotated with any matched flag rules.
type RingView struct {
	domain.FraudRing
	Flags []string `json:"flags,omitempty"`
}

// GetRings handles GET /runs/{id}/rings requests.
func (h *Handler) GetRings(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	views := make([]RingView, 0, len(run.Report.Rings))
	for _, ring := range run.Report.Rings {
		view := RingView{FraudRing: ring}
		if h.flags != nil {
			view.Flags = h.flags.Evaluate(risk.RingStats(ring))
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rings": views,
		"count": len(views),
	})
}

// GetOffenders handles GET /runs/{id}/offenders requests.
// With ?repeat=true only users with more than one fraudulent
// transaction are returned.
func (h *Handler) GetOffenders(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	offenders := run.Report.Offenders
	if r.URL.Query().Get("repeat") == "true" {
		filtered := make([]domain.OffenderStats, 0, len(offenders))
		for _, o := range offenders {
			if o.IsRepeatOffender() {
				filtered = append(filtered, o)
			}
		}
		offenders = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"offenders": offenders,
		"count":     len(offenders),
	})
}

// loadRun fetches the run named in the URL, writing the error response
// on failure.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.AnalysisRun, bool) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return nil, false
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return nil, false
	}

	run, err := h.repo.GetRun(ctx, tenantID, runID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get run", "run_id", runID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return nil, false
	}
	if run.Report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run has no report",
		})
		return nil, false
	}

	return run, true
}

// ListFlagRules returns the flag rules currently loaded in the engine.
func (h *Handler) ListFlagRules(w http.ResponseWriter, r *http.Request) {
	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag engine not available",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": h.flags.Rules(),
		"count": h.flags.RuleCount(),
	})
}

// ReplaceFlagRules replaces the loaded flag rule set.
func (h *Handler) ReplaceFlagRules(w http.ResponseWriter, r *http.Request) {
	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag engine not available",
		})
		return
	}

	var rules []risk.FlagRule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	for _, rule := range rules {
		if rule.Name == "" || rule.Expression == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "name and expression are required for every rule",
			})
			return
		}
	}

	if err := h.flags.LoadRules(rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid flag rule: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules loaded", "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "flag rules loaded",
		"count":   len(rules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
