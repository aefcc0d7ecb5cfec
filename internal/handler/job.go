package handler

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
	ws "github.com/fieldpunch/api/internal/websocket"
	"github.com/fieldpunch/api/pkg/response"
)

type JobHandler struct {
	jobs      *service.JobService
	hub       *ws.Hub
	validator *validator.Validate
}

func NewJobHandler(jobs *service.JobService, hub *ws.Hub, v *validator.Validate) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		hub:       hub,
		validator: v,
	}
}

// List handles GET /api/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	jobs, err := h.jobs.List(c.Context(), userID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"jobs": jobs})
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.JobCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)

	job, err := h.jobs.Add(c.Context(), req.Name, userID)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, verr.Error(), fiber.Map{"fields": verr.Fields})
		}
		var perr *service.PersistenceError
		if errors.As(err, &perr) {
			return response.PersistenceError(c, "Failed to save job")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, job)
}

// Delete handles DELETE /api/jobs/:jobId
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	userID := middleware.GetUserID(c)

	if err := h.jobs.Remove(c.Context(), jobID, userID); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// HandleUpdates streams replace-on-change job snapshots plus draft, capture
// and report events over one notification socket. Each snapshot carries the
// user's full job list; the client replaces local state wholesale.
func (h *JobHandler) HandleUpdates(c *websocket.Conn, userID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := h.jobs.Watch(ctx, userID)
	if err != nil {
		log.Printf("Failed to watch jobs for user %s: %v", userID, err)
		c.WriteMessage(websocket.CloseMessage, []byte{})
		return
	}

	go func() {
		for snapshot := range snapshots {
			h.hub.JobsChanged(userID, snapshot)
		}
	}()

	h.hub.HandleConnection(c, userID)
}
