package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reportscheduler/src/schemas"
	"reportscheduler/src/utils"
)

const (
	requestTimeout = 30 * time.Second
	// Manual runs generate and deliver the report inline.
	runNowTimeout = 2 * time.Minute
)

func (h *Handler) GetAllScheduledReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, _, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	schedules, err := h.Controller.GetAllScheduledReports(ctx, organizationID)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schedules, http.StatusOK)
}

func (h *Handler) GetScheduledReportByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, _, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	schedule, err := h.Controller.GetScheduledReportByID(ctx, organizationID, id)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schedule, http.StatusOK)
}

func (h *Handler) CreateScheduledReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, subject, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	var req schemas.CreateScheduledReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}

	schedule, err := h.Controller.CreateScheduledReport(ctx, organizationID, subject, &req)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schedule, http.StatusCreated)
}

func (h *Handler) UpdateScheduledReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, subject, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	var req schemas.UpdateScheduledReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid request body"))
		return
	}
	req.ID = id

	schedule, err := h.Controller.UpdateScheduledReport(ctx, organizationID, subject, &req)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schedule, http.StatusOK)
}

func (h *Handler) ToggleScheduledReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, subject, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	// The body is optional: absent means flip the current state.
	var req schemas.ToggleScheduledReportRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	schedule, err := h.Controller.ToggleScheduledReport(ctx, organizationID, id, req.IsActive, subject)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, schedule, http.StatusOK)
}

func (h *Handler) RunScheduledReportNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), runNowTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, _, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	run, err := h.Controller.RunScheduledReportNow(ctx, organizationID, id)
	if err != nil {
		h.Logger.Warning(err)
		if run == nil {
			h.HandleErrors(w, err)
			return
		}
		// The run happened and was recorded; report its failed outcome rather
		// than an opaque error.
	}

	h.respond(w, r, run, http.StatusOK)
}

func (h *Handler) DeleteScheduledReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, _, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	if err := h.Controller.DeleteScheduledReport(ctx, organizationID, id); err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetScheduledReportRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	organizationID, _, err := h.authenticate(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		h.HandleErrors(w, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			h.HandleErrors(w, utils.BadRequest("invalid limit parameter"))
			return
		}
	}

	runs, err := h.Controller.GetScheduledReportRuns(ctx, organizationID, id, limit)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, runs, http.StatusOK)
}

func parseIDParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, utils.BadRequest("invalid id URL parameter")
	}
	return uint(id), nil
}
