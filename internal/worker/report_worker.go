package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldpunch/api/internal/client"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/report"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
)

// ReportWorker renders queued punchlist reports and uploads the PDF.
type ReportWorker struct {
	reports  *service.ReportService
	jobs     store.JobStore
	renderer report.Renderer
	storage  client.StorageClient
	events   service.ReportEvents
}

func NewReportWorker(reports *service.ReportService, jobs store.JobStore, renderer report.Renderer, storage client.StorageClient, events service.ReportEvents) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		jobs:     jobs,
		renderer: renderer,
		storage:  storage,
		events:   events,
	}
}

// ProcessTask handles a report:generate task.
func (w *ReportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ReportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	rep, err := w.reports.Get(ctx, payload.ReportID)
	if err != nil {
		return fmt.Errorf("failed to load report %s: %w", payload.ReportID, err)
	}
	log.Printf("Starting report job: %s (job %s, filter %q)", rep.ID, rep.JobID, rep.Filter)

	w.updateProgress(ctx, rep, 10, "Loading punchlist items...")

	job, err := w.jobs.Get(ctx, rep.JobID)
	if err != nil {
		w.failReport(ctx, rep, fmt.Sprintf("Failed to load job: %v", err))
		return err
	}

	rows := buildRows(job.Items, rep.Filter)

	w.updateProgress(ctx, rep, 30, "Rendering PDF...")

	now := time.Now()
	doc := &report.Document{
		Title:       job.Name,
		Filter:      rep.Filter,
		GeneratedAt: now,
		Rows:        rows,
	}

	data, err := w.renderer.Render(ctx, doc)
	if err != nil {
		w.failReport(ctx, rep, fmt.Sprintf("Failed to render report: %v", err))
		return err
	}

	w.updateProgress(ctx, rep, 80, "Uploading report...")

	fileName := report.FileName(rep.Filter, now)
	key := fmt.Sprintf("reports/%s/%s.pdf", rep.UserID, rep.ID)

	var fileURL string
	if w.storage != nil {
		fileURL, err = w.storage.Upload(ctx, key, bytes.NewReader(data), "application/pdf")
		if err != nil {
			w.failReport(ctx, rep, fmt.Sprintf("Failed to upload report: %v", err))
			return err
		}
	} else {
		fileURL = fmt.Sprintf("https://cdn.fieldpunch.example/%s", key)
		log.Printf("Storage client not configured, using mock URL for report %s", rep.ID)
	}

	if err := w.reports.Complete(ctx, rep.ID, fileURL, fileName, len(rows)); err != nil {
		w.failReport(ctx, rep, "Failed to save result")
		return err
	}

	w.events.ReportComplete(rep.UserID, rep.ID, fileURL, fileName)
	log.Printf("Report job %s completed (%d rows)", rep.ID, len(rows))
	return nil
}

// buildRows filters the job's items by category and maps them to table rows.
// Item order follows the job document, newest first.
func buildRows(items []model.PunchlistItem, filter string) []report.Row {
	rows := make([]report.Row, 0, len(items))
	for _, item := range items {
		if filter != "" && filter != service.FilterAll && !strings.EqualFold(string(item.Category), filter) {
			continue
		}
		rows = append(rows, report.Row{
			Room:        item.Room,
			Category:    string(item.Category),
			Description: item.Description,
			PhotoURL:    item.Photo,
		})
	}
	return rows
}

func (w *ReportWorker) updateProgress(ctx context.Context, rep *model.ReportJob, progress int, step string) {
	if err := w.reports.UpdateProgress(ctx, rep.ID, progress, step); err != nil {
		log.Printf("Failed to update report progress: %v", err)
	}
	w.events.ReportProgress(rep.UserID, rep.ID, progress, model.ReportStatusRunning, step)
}

func (w *ReportWorker) failReport(ctx context.Context, rep *model.ReportJob, errMsg string) {
	if err := w.reports.Fail(ctx, rep.ID, errMsg); err != nil {
		log.Printf("Failed to mark report as failed: %v", err)
	}
	w.events.ReportFailed(rep.UserID, rep.ID, errMsg)
}
