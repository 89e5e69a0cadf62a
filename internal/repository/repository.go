package repository

import (
	"alcyxob/video-catalog/internal/domain"
	"context"
	"iter"
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrConflict      = RepositoryError("version conflict")
	ErrAlreadyExists = RepositoryError("already exists")
	ErrUnavailable   = RepositoryError("backing store unavailable")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// VideoMutator produces a new video value from the current one. It must be a
// pure function: it may run more than once per logical update when callers
// retry after a conflict.
type VideoMutator func(current domain.Video) domain.Video

// VideoFilter narrows a catalog query. An empty Search matches every video.
type VideoFilter struct {
	// Search is matched case-insensitively as a substring of title, genre or publisher.
	Search string
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// VideoRepository is the document store for videos.
type VideoRepository interface {
	// Create inserts a new video. Returns ErrAlreadyExists on id collision.
	Create(ctx context.Context, video *domain.Video) error

	// GetByID returns ErrNotFound when no video has the given id.
	GetByID(ctx context.Context, id string) (*domain.Video, error)

	// Query returns a lazy sequence of videos matching filter, newest first.
	// Each range over the sequence re-runs the query.
	Query(ctx context.Context, filter VideoFilter) iter.Seq2[domain.Video, error]

	// Update applies mutate to the stored video only if its version equals
	// expectedVersion, then stores the result with version+1. A mismatch
	// returns ErrConflict and writes nothing.
	Update(ctx context.Context, id string, expectedVersion int64, mutate VideoMutator) (*domain.Video, error)
}

// Prepare applies mutate to current and pins the fields no mutation may
// change. The returned video carries version expectedVersion+1.
func Prepare(current domain.Video, mutate VideoMutator) domain.Video {
	next := mutate(current.Clone())
	next.ID = current.ID
	next.UploaderID = current.UploaderID
	next.CreatedAt = current.CreatedAt
	next.ObjectKey = current.ObjectKey
	next.MediaLocator = current.MediaLocator
	next.Version = current.Version + 1
	return next
}
