package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/fieldpunch/api/internal/client"
	"github.com/fieldpunch/api/internal/model"
)

// CleanupWorker deletes orphaned photos after a job is removed. Deletion
// is best effort: failures are logged, never retried past the queue's
// retry budget, and never surface to the user.
type CleanupWorker struct {
	storage client.StorageClient
}

func NewCleanupWorker(storage client.StorageClient) *CleanupWorker {
	return &CleanupWorker{storage: storage}
}

// ProcessTask handles a storage:cleanup task.
func (w *CleanupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.CleanupTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	if w.storage == nil {
		log.Printf("Storage client not configured, skipping cleanup for job %s", payload.JobID)
		return nil
	}

	deleted := 0
	for _, url := range payload.PhotoURLs {
		key, ok := w.storage.KeyForURL(url)
		if !ok {
			log.Printf("Cleanup: skipping unrecognized photo URL for job %s", payload.JobID)
			continue
		}
		if err := w.storage.Delete(ctx, key); err != nil {
			log.Printf("Cleanup: failed to delete %s: %v", key, err)
			continue
		}
		deleted++
	}

	log.Printf("Cleanup for job %s: deleted %d of %d photos", payload.JobID, deleted, len(payload.PhotoURLs))
	return nil
}
