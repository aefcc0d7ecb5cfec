package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/store"
)

// CleanupEnqueuer queues best-effort deletion of stored photos.
type CleanupEnqueuer interface {
	EnqueueCleanup(payload model.CleanupTaskPayload) error
}

// JobService is the authoritative job collection per user.
type JobService struct {
	store store.JobStore
	tasks CleanupEnqueuer
}

func NewJobService(jobStore store.JobStore, tasks CleanupEnqueuer) *JobService {
	return &JobService{
		store: jobStore,
		tasks: tasks,
	}
}

// List returns the user's jobs, newest-created first.
func (s *JobService) List(ctx context.Context, userID string) ([]model.Job, error) {
	return s.store.ListByUser(ctx, userID)
}

// Watch streams live job-list snapshots: any add or delete by any
// collaborator sharing the backing store is reflected without polling.
func (s *JobService) Watch(ctx context.Context, userID string) (<-chan []model.Job, error) {
	return s.store.Watch(ctx, userID)
}

// Add creates a new empty job.
func (s *JobService) Add(ctx context.Context, name, userID string) (*model.Job, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: []string{"name"}}
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Name:      name,
		UserID:    userID,
		CreatedAt: time.Now(),
		Items:     []model.PunchlistItem{},
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	return job, nil
}

// Remove deletes the job and queues best-effort deletion of all associated
// photos. Cleanup failures are logged and never block the delete itself.
func (s *JobService) Remove(ctx context.Context, jobID, userID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return store.ErrJobNotFound
	}

	photoURLs := make([]string, 0, len(job.Items))
	for _, item := range job.Items {
		if item.Photo != "" {
			photoURLs = append(photoURLs, item.Photo)
		}
	}

	if len(photoURLs) > 0 && s.tasks != nil {
		if err := s.tasks.EnqueueCleanup(model.CleanupTaskPayload{
			UserID:    userID,
			JobID:     jobID,
			PhotoURLs: photoURLs,
		}); err != nil {
			log.Printf("Failed to queue photo cleanup for job %s: %v", jobID, err)
		}
	}

	return s.store.Delete(ctx, job)
}
