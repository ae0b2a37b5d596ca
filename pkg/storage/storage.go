// Package storage defines the persistence contract the engine consumes:
// named save slots holding one JSON snapshot each, plus read access to
// the story template library.
package storage

import (
	"context"
	"errors"

	"github.com/storyweave/gamemaster/pkg/story"
)

var (
	// ErrSaveNotFound is returned when a save slot does not exist.
	ErrSaveNotFound = errors.New("save not found")

	// ErrStoryNotFound is returned when a story template does not exist.
	ErrStoryNotFound = errors.New("story not found")
)

// Store is the persistence collaborator for game sessions.
type Store interface {
	// SaveExists reports whether a save slot is occupied.
	SaveExists(ctx context.Context, name string) (bool, error)

	// WriteSave stores one snapshot, overwriting any existing slot.
	// Overwrite protection is the caller's policy, built on SaveExists.
	WriteSave(ctx context.Context, name string, data []byte) error

	// ReadSave retrieves a snapshot or ErrSaveNotFound.
	ReadSave(ctx context.Context, name string) ([]byte, error)

	// ListSaves returns the occupied slot names.
	ListSaves(ctx context.Context) ([]string, error)

	// DeleteSave removes a save slot.
	DeleteSave(ctx context.Context, name string) error

	// ListStories returns the available story template names.
	ListStories(ctx context.Context) ([]string, error)

	// LoadStory loads a story template or ErrStoryNotFound.
	LoadStory(ctx context.Context, name string) (*story.Template, error)
}
