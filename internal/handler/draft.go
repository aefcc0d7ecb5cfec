package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
	"github.com/fieldpunch/api/pkg/response"
)

type DraftHandler struct {
	drafts   *service.DraftService
	jobStore store.JobStore
}

func NewDraftHandler(drafts *service.DraftService, jobStore store.JobStore) *DraftHandler {
	return &DraftHandler{
		drafts:   drafts,
		jobStore: jobStore,
	}
}

// Get handles GET /api/draft
func (h *DraftHandler) Get(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	return response.OK(c, h.drafts.Draft(userID))
}

// Update handles PATCH /api/draft
func (h *DraftHandler) Update(c *fiber.Ctx) error {
	var req model.DraftUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	userID := middleware.GetUserID(c)
	return response.OK(c, h.drafts.Update(userID, &req))
}

// Cancel handles POST /api/draft/cancel
func (h *DraftHandler) Cancel(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	h.drafts.Cancel(userID)
	return response.OK(c, h.drafts.Draft(userID))
}

// Submit handles POST /api/draft/submit. The request is multipart: a jobId
// form field plus the item photo, which is required for submission.
func (h *DraftHandler) Submit(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	jobID := c.FormValue("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.jobStore.Get(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	if job.UserID != userID {
		return response.NotFound(c, "Job not found")
	}

	var photo service.PhotoUpload
	if fileHeader, err := c.FormFile("photo"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return response.ValidationError(c, "Failed to read photo", nil)
		}
		defer file.Close()

		photo = service.PhotoUpload{
			Reader:      file,
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
		}
	}

	item, err := h.drafts.Submit(c.Context(), userID, jobID, photo)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, verr.Error(), fiber.Map{"fields": verr.Fields})
		}
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		var perr *service.PersistenceError
		if errors.As(err, &perr) {
			return response.PersistenceError(c, "Failed to save item")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, model.DraftSubmitResponse{
		JobID: jobID,
		Item:  *item,
	})
}
