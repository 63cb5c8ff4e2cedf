package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/handler/http/response"
	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/cron"
	"github.com/go-chi/chi/v5"
)

// JobScheduler is the part of cron.Scheduler the handler drives.
type JobScheduler interface {
	Trigger(ctx context.Context, name string) (any, error)
	NextRun(name string) (time.Time, error)
}

// RunReader reads recorded job runs.
type RunReader interface {
	LastRun(ctx context.Context, job string) (cron.Run, error)
	History(ctx context.Context, job string, n int) ([]cron.Run, error)
}

type JobHandler interface {
	TriggerSeed(w http.ResponseWriter, r *http.Request)
	TriggerFinalize(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
}

type jobHandlerImpl struct {
	scheduler JobScheduler
	runs      RunReader
}

// NewJobHandler builds the admin job endpoints. runs may be nil when no
// run recorder is configured.
func NewJobHandler(scheduler JobScheduler, runs RunReader) JobHandler {
	return &jobHandlerImpl{scheduler: scheduler, runs: runs}
}

type JobResponse struct {
	Name    string     `json:"name"`
	NextRun time.Time  `json:"nextRun"`
	LastRun *cron.Run  `json:"lastRun"`
	History []cron.Run `json:"history,omitempty"`
}

// TriggerSeed implements JobHandler.
func (h *jobHandlerImpl) TriggerSeed(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, cron.SeedJobName, "Absence seeding completed")
}

// TriggerFinalize implements JobHandler.
func (h *jobHandlerImpl) TriggerFinalize(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, cron.FinalizeJobName, "Shift finalization completed")
}

func (h *jobHandlerImpl) trigger(w http.ResponseWriter, r *http.Request, name, message string) {
	result, err := h.scheduler.Trigger(r.Context(), name)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, result)
}

// Get implements JobHandler.
func (h *jobHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	next, err := h.scheduler.NextRun(name)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	resp := JobResponse{Name: name, NextRun: next}

	if h.runs != nil {
		last, err := h.runs.LastRun(r.Context(), name)
		switch {
		case err == nil:
			resp.LastRun = &last
		case !errors.Is(err, cron.ErrNoRunRecorded):
			response.HandleError(w, err)
			return
		}

		if n, convErr := strconv.Atoi(r.URL.Query().Get("history")); convErr == nil && n > 0 {
			history, err := h.runs.History(r.Context(), name, n)
			if err != nil {
				response.HandleError(w, err)
				return
			}
			resp.History = history
		}
	}

	response.Success(w, resp)
}
