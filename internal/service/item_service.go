package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldpunch/api/internal/client"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/store"
)

// PhotoUpload is a locally held photo blob on its way to the object store.
type PhotoUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// ItemService is the authoritative item collection per job. Adding an item
// uploads its photo, prepends the item to the job's sequence and persists
// the sequence as one whole-document update.
type ItemService struct {
	store   store.JobStore
	storage client.StorageClient
}

func NewItemService(jobStore store.JobStore, storage client.StorageClient) *ItemService {
	return &ItemService{
		store:   jobStore,
		storage: storage,
	}
}

// Add creates a new item in the job's sequence. If the document update fails
// after the photo upload succeeded, the error carries the uploaded blob
// reference so it is not silently lost.
func (s *ItemService) Add(ctx context.Context, jobID string, fields model.ItemFields, photo PhotoUpload) (*model.PunchlistItem, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	key := photoKey(job.UserID, jobID, photo.Filename)

	var photoURL string
	if s.storage == nil {
		// Mock storage for development without R2 credentials.
		photoURL = "https://cdn.fieldpunch.example/" + key
	} else {
		photoURL, err = s.storage.Upload(ctx, key, photo.Reader, photo.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload photo: %w", err)
		}
	}

	item := model.PunchlistItem{
		ID:          uuid.New().String(),
		Room:        fields.Room,
		Description: fields.Description,
		Category:    fields.Category,
		Photo:       photoURL,
		CreatedAt:   time.Now(),
	}

	// Newest first by insertion, independent of createdAt clock skew.
	job.Items = append([]model.PunchlistItem{item}, job.Items...)

	if err := s.store.Update(ctx, job); err != nil {
		return nil, &PersistenceError{Err: err, OrphanedPhotoURL: photoURL}
	}

	return &item, nil
}

// Remove deletes an item and attempts to delete its stored photo. Photo
// deletion failures are logged, never fatal; the item is removed from the
// sequence regardless.
func (s *ItemService) Remove(ctx context.Context, jobID, itemID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	idx := -1
	for i, item := range job.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrItemNotFound
	}

	s.deletePhoto(ctx, job.Items[idx].Photo)

	job.Items = append(job.Items[:idx], job.Items[idx+1:]...)
	return s.store.Update(ctx, job)
}

func (s *ItemService) deletePhoto(ctx context.Context, photoURL string) {
	if s.storage == nil || photoURL == "" {
		return
	}
	key, ok := s.storage.KeyForURL(photoURL)
	if !ok {
		// Inline data URL or a reference from another store; nothing to clean.
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		log.Printf("Error deleting photo %s from storage: %v", photoURL, err)
	}
}

// photoKey builds a collision-resistant storage path namespaced by owner and
// job: images/<userId>/<jobId>/<timestamp>-<random>-<original name>.
func photoKey(userID, jobID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "photo"
	}
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("images/%s/%s/%d-%s-%s", userID, jobID, time.Now().UnixMilli(), suffix, name)
}
