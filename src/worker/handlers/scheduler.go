package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reportscheduler/src/repositories"
	"reportscheduler/src/schemas"
	"reportscheduler/src/utils"
)

// A sweep executes up to a full batch of reports inline.
const pollTimeout = 10 * time.Minute

// Poll runs one claim-then-execute sweep and reports the counts.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pollTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	batchSize := h.BatchSize
	var req schemas.PollRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.BatchSize > 0 {
			batchSize = req.BatchSize
		}
	}

	result, err := h.Controller.ProcessDueReports(ctx, batchSize)
	if err != nil {
		h.Logger.Warning(err)
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, result, http.StatusOK)
}

// RunSchedule triggers one schedule immediately, bypassing the due-check.
func (h *Handler) RunSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pollTimeout)
	defer cancel()
	ctx = utils.WithLogger(ctx, h.Logger)

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.HandleErrors(w, utils.BadRequest("invalid id URL parameter"))
		return
	}

	run, err := h.Controller.RunScheduleByID(ctx, uint(id))
	if err != nil {
		h.Logger.Warning(err)
		if errors.Is(err, repositories.ErrNotFound) {
			h.HandleErrors(w, utils.NotFound("scheduled report not found"))
			return
		}
		if run == nil {
			h.HandleErrors(w, err)
			return
		}
	}

	h.respond(w, r, run, http.StatusOK)
}
