package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
	"github.com/fieldpunch/api/pkg/response"
)

type ItemHandler struct {
	items    *service.ItemService
	jobStore store.JobStore
}

func NewItemHandler(items *service.ItemService, jobStore store.JobStore) *ItemHandler {
	return &ItemHandler{
		items:    items,
		jobStore: jobStore,
	}
}

// Delete handles DELETE /api/jobs/:jobId/items/:itemId
func (h *ItemHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	itemID := c.Params("itemId")
	if jobID == "" || itemID == "" {
		return response.ValidationError(c, "Job ID and item ID are required", nil)
	}

	userID := middleware.GetUserID(c)

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

	if err := h.items.Remove(c.Context(), jobID, itemID); err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			return response.NotFound(c, "Item not found")
		}
		var perr *service.PersistenceError
		if errors.As(err, &perr) {
			return response.PersistenceError(c, "Failed to save job")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
