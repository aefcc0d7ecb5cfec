package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/speech"
	"github.com/fieldpunch/api/internal/store"
)

// fakeJobStore is an in-memory store.JobStore with injectable failures.
type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	createErr error
	updateErr error
	updates   int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*model.Job)}
}

func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	copied.Items = append([]model.PunchlistItem(nil), job.Items...)
	return &copied, nil
}

func (f *fakeJobStore) Create(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) Update(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.jobs[job.ID]; !ok {
		return store.ErrJobNotFound
	}
	copied := *job
	copied.Items = append([]model.PunchlistItem(nil), job.Items...)
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) Delete(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, job.ID)
	return nil
}

func (f *fakeJobStore) ListByUser(ctx context.Context, userID string) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Job
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobStore) Watch(ctx context.Context, userID string) (<-chan []model.Job, error) {
	ch := make(chan []model.Job, 1)
	snapshot, _ := f.ListByUser(ctx, userID)
	ch <- snapshot
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// fakeStorage records uploads and deletes.
type fakeStorage struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	uploadErr error
	deleteErr error
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, key)
	return "https://storage.test/" + key, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeStorage) KeyForURL(url string) (string, bool) {
	const prefix = "https://storage.test/"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):], true
	}
	return "", false
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://storage.test/" + key
}

// draftEventRecorder captures draft snapshots in publish order.
type draftEventRecorder struct {
	mu        sync.Mutex
	snapshots []model.DraftRecord
}

func (r *draftEventRecorder) DraftChanged(userID string, draft model.DraftRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, draft)
}

func (r *draftEventRecorder) last() (model.DraftRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return model.DraftRecord{}, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}

func (r *draftEventRecorder) states() []model.DraftState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DraftState, len(r.snapshots))
	for i, s := range r.snapshots {
		out[i] = s.State
	}
	return out
}

// captureEventRecorder captures transcript and error broadcasts.
type captureEventRecorder struct {
	mu          sync.Mutex
	transcripts []string
	errors      []model.CaptureErrorReason
	messages    []string
}

func (r *captureEventRecorder) TranscriptUpdated(userID, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, transcript)
}

func (r *captureEventRecorder) CaptureError(userID string, reason model.CaptureErrorReason, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, reason)
	r.messages = append(r.messages, message)
}

func (r *captureEventRecorder) lastError() (model.CaptureErrorReason, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return "", false
	}
	return r.errors[len(r.errors)-1], true
}

func (r *captureEventRecorder) lastErrorMessage() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return "", false
	}
	return r.messages[len(r.messages)-1], true
}

// fakeExtractor returns canned extraction results for the draft reconciler.
type fakeExtractor struct {
	mu      sync.Mutex
	fields  *model.ExtractedFields
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, transcript string) (*model.ExtractedFields, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.fields
	return &copied, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeItems records persistence requests from submitted drafts.
type fakeItems struct {
	mu     sync.Mutex
	addErr error
	added  []model.ItemFields
}

func (f *fakeItems) Add(ctx context.Context, jobID string, fields model.ItemFields, photo PhotoUpload) (*model.PunchlistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, fields)
	return &model.PunchlistItem{
		ID:          fmt.Sprintf("item-%d", len(f.added)),
		Room:        fields.Room,
		Description: fields.Description,
		Category:    fields.Category,
	}, nil
}

// fakeCleanup records cleanup payloads.
type fakeCleanup struct {
	mu       sync.Mutex
	err      error
	payloads []model.CleanupTaskPayload
}

func (f *fakeCleanup) EnqueueCleanup(payload model.CleanupTaskPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

// fakeSpeechSession is a scripted speech.Session.
type fakeSpeechSession struct {
	events  chan speech.Event
	waitErr error

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeSpeechSession() *fakeSpeechSession {
	return &fakeSpeechSession{events: make(chan speech.Event, 16)}
}

func (s *fakeSpeechSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeSpeechSession) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSpeechSession) Events() <-chan speech.Event { return s.events }

func (s *fakeSpeechSession) Wait() error { return s.waitErr }

func (s *fakeSpeechSession) Close() error { return s.CloseSend() }

// fakeRecognizer hands out scripted sessions in order.
type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []*fakeSpeechSession
	startErr error
	started  int
	lastCtx  context.Context
}

func (f *fakeRecognizer) Start(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCtx = ctx
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.started >= len(f.sessions) {
		return nil, fmt.Errorf("no scripted session left")
	}
	s := f.sessions[f.started]
	f.started++
	return s, nil
}

func (f *fakeRecognizer) sessionContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCtx
}
