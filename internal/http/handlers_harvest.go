// Package httpx is the JSON control surface of the review harvester.
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/service"
)

// HarvestController is the orchestrator API exposed over HTTP.
type HarvestController interface {
	Start(ctx context.Context, req service.StartRequest) (*service.StartResult, error)
	Stop(ctx context.Context) (*service.StopResult, error)
	Status(ctx context.Context) (*model.HarvestStatus, error)
	Recent(ctx context.Context, limit int) ([]*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	Portals() []model.Portal
}

var _ HarvestController = (*service.HarvestService)(nil)

// HarvestHandlers provides HTTP handlers for harvest job control.
type HarvestHandlers struct {
	Svc    HarvestController
	Logger *slog.Logger
}

// Start handles POST /api/harvest/start. The body is optional; date_filter defaults to "all".
func (h *HarvestHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.Start(r.Context(), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, res)
}

// Stop handles POST /api/harvest/stop.
func (h *HarvestHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Stop(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Status handles GET /api/harvest/status.
func (h *HarvestHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Status(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// ListJobs handles GET /api/harvest/jobs?limit=N. The service applies the default and ceiling.
func (h *HarvestHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	jobs, err := h.Svc.Recent(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/harvest/jobs/{id}.
func (h *HarvestHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Portals handles GET /api/harvest/portals.
func (h *HarvestHandlers) Portals(w http.ResponseWriter, _ *http.Request) {
	portals := h.Svc.Portals()
	if portals == nil {
		portals = []model.Portal{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"portals": portals})
}
