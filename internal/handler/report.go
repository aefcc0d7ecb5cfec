package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
	"github.com/fieldpunch/api/pkg/response"
)

type ReportHandler struct {
	reports   *service.ReportService
	validator *validator.Validate
}

func NewReportHandler(reports *service.ReportService, v *validator.Validate) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		validator: v,
	}
}

// Start handles POST /api/reports
func (h *ReportHandler) Start(c *fiber.Ctx) error {
	var req model.ReportStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)

	result, err := h.reports.Start(c.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/reports/:reportId
func (h *ReportHandler) Status(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return response.ValidationError(c, "Report ID is required", nil)
	}

	userID := middleware.GetUserID(c)

	result, err := h.reports.GetStatus(c.Context(), userID, reportID)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return response.NotFound(c, "Report not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/reports/:reportId/result
func (h *ReportHandler) Result(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return response.ValidationError(c, "Report ID is required", nil)
	}

	userID := middleware.GetUserID(c)

	result, err := h.reports.GetResult(c.Context(), userID, reportID)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return response.NotFound(c, "Report not found")
		}
		if errors.Is(err, service.ErrReportNotReady) {
			return response.ValidationError(c, "Report not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
