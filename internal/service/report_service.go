package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/store"
)

// FilterAll selects every item regardless of category.
const FilterAll = "All"

var (
	ErrReportNotFound = errors.New("report not found")
	// ErrReportNotReady is returned when the result is requested before the
	// report has finished generating.
	ErrReportNotReady = errors.New("report not completed")
)

// ReportEnqueuer queues report generation tasks.
type ReportEnqueuer interface {
	EnqueueReport(payload model.ReportTaskPayload) error
}

// ReportService manages report-generation job records in Redis and hands
// the heavy lifting to the worker queue.
type ReportService struct {
	redis *redis.Client
	jobs  store.JobStore
	tasks ReportEnqueuer
}

func NewReportService(redisClient *redis.Client, jobs store.JobStore, tasks ReportEnqueuer) *ReportService {
	return &ReportService{
		redis: redisClient,
		jobs:  jobs,
		tasks: tasks,
	}
}

// Start validates the request, creates the report record and queues the
// generation task.
func (s *ReportService) Start(ctx context.Context, userID string, req *model.ReportStartRequest) (*model.ReportStartResponse, error) {
	job, err := s.jobs.Get(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, store.ErrJobNotFound
	}

	filter := strings.TrimSpace(req.Filter)
	if filter == "" {
		filter = FilterAll
	}

	now := time.Now()
	report := &model.ReportJob{
		ID:        uuid.New().String(),
		UserID:    userID,
		JobID:     job.ID,
		Filter:    filter,
		Status:    model.ReportStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	if err := s.saveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if err := s.tasks.EnqueueReport(model.ReportTaskPayload{ReportID: report.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue report: %w", err)
	}

	return &model.ReportStartResponse{
		ReportID:  report.ID,
		Status:    report.Status,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current state of a report job.
func (s *ReportService) GetStatus(ctx context.Context, userID, reportID string) (*model.ReportStatusResponse, error) {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrReportNotFound
	}

	return &model.ReportStatusResponse{
		ReportID:    report.ID,
		Status:      report.Status,
		Progress:    report.Progress,
		CurrentStep: report.CurrentStep,
		Error:       report.Error,
		CreatedAt:   report.CreatedAt,
		StartedAt:   report.StartedAt,
		CompletedAt: report.CompletedAt,
	}, nil
}

// GetResult returns the download details of a succeeded report.
func (s *ReportService) GetResult(ctx context.Context, userID, reportID string) (*model.ReportResultResponse, error) {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrReportNotFound
	}

	if report.Status != model.ReportStatusSucceeded {
		return nil, ErrReportNotReady
	}

	return &model.ReportResultResponse{
		ReportID: report.ID,
		FileURL:  report.FileURL,
		FileName: report.FileName,
		RowCount: report.RowCount,
	}, nil
}

// Get loads the raw report record. Used by the worker.
func (s *ReportService) Get(ctx context.Context, reportID string) (*model.ReportJob, error) {
	return s.getReport(ctx, reportID)
}

// UpdateProgress updates the report progress (called by worker).
func (s *ReportService) UpdateProgress(ctx context.Context, reportID string, progress int, step string) error {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return err
	}

	report.Progress = progress
	report.CurrentStep = step

	if report.Status == model.ReportStatusQueued {
		report.Status = model.ReportStatusRunning
		now := time.Now()
		report.StartedAt = &now
	}

	return s.saveReport(ctx, report)
}

// Complete marks the report as succeeded (called by worker).
func (s *ReportService) Complete(ctx context.Context, reportID, fileURL, fileName string, rowCount int) error {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return err
	}

	report.Status = model.ReportStatusSucceeded
	report.Progress = 100
	report.CurrentStep = ""
	report.FileURL = fileURL
	report.FileName = fileName
	report.RowCount = rowCount
	now := time.Now()
	report.CompletedAt = &now

	return s.saveReport(ctx, report)
}

// Fail marks the report as failed (called by worker).
func (s *ReportService) Fail(ctx context.Context, reportID, errMsg string) error {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return err
	}

	report.Status = model.ReportStatusFailed
	report.Error = &errMsg
	now := time.Now()
	report.CompletedAt = &now

	return s.saveReport(ctx, report)
}

func (s *ReportService) saveReport(ctx context.Context, report *model.ReportJob) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, reportKey(report.ID), data, 24*time.Hour).Err()
}

func (s *ReportService) getReport(ctx context.Context, reportID string) (*model.ReportJob, error) {
	data, err := s.redis.Get(ctx, reportKey(reportID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	var report model.ReportJob
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

func reportKey(id string) string {
	return fmt.Sprintf("punchlist:report:%s", id)
}
