package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrItemNotFound is returned for a stale reference to a deleted item.
var ErrItemNotFound = errors.New("item not found")

// ErrNoActiveSession is returned when audio or stop arrives with no capture
// session running. Stop itself treats this as a no-op.
var ErrNoActiveSession = errors.New("no active capture session")

// ValidationError reports incomplete user input. It blocks the requested
// action and never corrupts stored state.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// PersistenceError reports a failed store write. When an object upload
// preceded the write, OrphanedPhotoURL names the blob reference that must
// not be silently lost.
type PersistenceError struct {
	Err              error
	OrphanedPhotoURL string
}

func (e *PersistenceError) Error() string {
	if e.OrphanedPhotoURL != "" {
		return fmt.Sprintf("store write failed (uploaded photo %s is orphaned): %v", e.OrphanedPhotoURL, e.Err)
	}
	return fmt.Sprintf("store write failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
