// Package memory provides map-backed repositories. They honor the same
// contracts as the MongoDB implementations and back tests and local runs.
package memory

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

type videoRepository struct {
	mu     sync.RWMutex
	videos map[string]domain.Video
}

// NewVideoRepository creates an empty in-memory video store.
func NewVideoRepository() repository.VideoRepository {
	return &videoRepository{videos: make(map[string]domain.Video)}
}

func (r *videoRepository) Create(ctx context.Context, video *domain.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.videos[video.ID] = video.Clone()
	return nil
}

func (r *videoRepository) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := v.Clone()
	return &out, nil
}

func (r *videoRepository) Query(ctx context.Context, filter repository.VideoFilter) iter.Seq2[domain.Video, error] {
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	return func(yield func(domain.Video, error) bool) {
		r.mu.RLock()
		matched := make([]domain.Video, 0, len(r.videos))
		for _, v := range r.videos {
			if needle == "" || matches(v, needle) {
				matched = append(matched, v.Clone())
			}
		}
		r.mu.RUnlock()

		slices.SortFunc(matched, func(a, b domain.Video) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})

		for _, v := range matched {
			if err := ctx.Err(); err != nil {
				yield(domain.Video{}, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Update reads, mutates outside the lock and then compares-and-swaps on the
// version, the same protocol the MongoDB store follows.
func (r *videoRepository) Update(ctx context.Context, id string, expectedVersion int64, mutate repository.VideoMutator) (*domain.Video, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, repository.ErrConflict
	}

	next := repository.Prepare(*current, mutate)

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.videos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, repository.ErrConflict
	}
	r.videos[id] = next.Clone()
	return &next, nil
}

func matches(v domain.Video, needle string) bool {
	return strings.Contains(strings.ToLower(v.Title), needle) ||
		strings.Contains(strings.ToLower(v.Genre), needle) ||
		strings.Contains(strings.ToLower(v.Publisher), needle)
}
