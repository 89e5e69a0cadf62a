package memory

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVideo(t *testing.T, repo repository.VideoRepository, id, title, genre, publisher string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Video{
		ID:        id,
		Title:     title,
		Genre:     genre,
		Publisher: publisher,
		CreatedAt: createdAt,
		Comments:  []domain.Comment{},
		Ratings:   map[string]domain.Rating{},
	}))
}

func collect(t *testing.T, repo repository.VideoRepository, search string) []domain.Video {
	t.Helper()
	var out []domain.Video
	for v, err := range repo.Query(context.Background(), repository.VideoFilter{Search: search}) {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestVideoRepository_CreateDuplicate(t *testing.T) {
	repo := NewVideoRepository()
	seedVideo(t, repo, "video_1", "A", "", "", time.Now())

	err := repo.Create(context.Background(), &domain.Video{ID: "video_1"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestVideoRepository_GetMissing(t *testing.T) {
	repo := NewVideoRepository()
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVideoRepository_UpdateStaleVersionIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository()
	seedVideo(t, repo, "video_1", "A", "", "", time.Now())

	_, err := repo.Update(ctx, "video_1", 0, func(v domain.Video) domain.Video {
		v.Title = "B"
		return v
	})
	require.NoError(t, err)

	called := false
	_, err = repo.Update(ctx, "video_1", 0, func(v domain.Video) domain.Video {
		called = true
		v.Title = "C"
		return v
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.False(t, called, "mutator must not run on a stale version")

	got, err := repo.GetByID(ctx, "video_1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
	assert.Equal(t, int64(1), got.Version)
}

func TestVideoRepository_UpdateCurrentVersionIncrementsByOne(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository()
	seedVideo(t, repo, "video_1", "A", "", "", time.Now())

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Update(ctx, "video_1", want-1, func(v domain.Video) domain.Video { return v })
		require.NoError(t, err)
		assert.Equal(t, want, got.Version)
	}
}

func TestVideoRepository_UpdatePinsImmutableFields(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.Video{ID: "video_1", UploaderID: "u1", CreatedAt: created, ObjectKey: "k", MediaLocator: "url"}))

	got, err := repo.Update(ctx, "video_1", 0, func(v domain.Video) domain.Video {
		v.ID = "other"
		v.UploaderID = "u9"
		v.CreatedAt = time.Now()
		v.ObjectKey = "x"
		v.MediaLocator = "y"
		v.Version = 42
		return v
	})
	require.NoError(t, err)
	assert.Equal(t, "video_1", got.ID)
	assert.Equal(t, "u1", got.UploaderID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "k", got.ObjectKey)
	assert.Equal(t, "url", got.MediaLocator)
	assert.Equal(t, int64(1), got.Version)
}

func TestVideoRepository_UpdateMissing(t *testing.T) {
	repo := NewVideoRepository()
	_, err := repo.Update(context.Background(), "nope", 0, func(v domain.Video) domain.Video { return v })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVideoRepository_OneWinnerPerVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository()
	seedVideo(t, repo, "video_1", "A", "", "", time.Now())

	const writers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "video_1", 0, func(v domain.Video) domain.Video {
				return domain.AppendComment(v, domain.Comment{Text: fmt.Sprint(i)})
			})
			if err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, repository.ErrConflict)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := repo.GetByID(ctx, "video_1")
	require.NoError(t, err)
	assert.Len(t, got.Comments, 1)
	assert.Equal(t, int64(1), got.Version)
}

func TestVideoRepository_QuerySearchAndOrder(t *testing.T) {
	repo := NewVideoRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedVideo(t, repo, "v1", "Comedy Night", "Humor", "Acme", base)
	seedVideo(t, repo, "v2", "Drama", "Tragedy", "Acme", base.Add(time.Hour))
	seedVideo(t, repo, "v3", "Space", "Documentary", "NASA", base.Add(2*time.Hour))

	all := collect(t, repo, "")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"v3", "v2", "v1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	got := collect(t, repo, "com")
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].ID)

	got = collect(t, repo, "ACME")
	assert.Len(t, got, 2)

	got = collect(t, repo, "doc")
	require.Len(t, got, 1)
	assert.Equal(t, "v3", got[0].ID)

	assert.Empty(t, collect(t, repo, "xyz"))
}

func TestVideoRepository_QueryIsRestartable(t *testing.T) {
	repo := NewVideoRepository()
	seedVideo(t, repo, "v1", "One", "", "", time.Now())
	seq := repo.Query(context.Background(), repository.VideoFilter{})

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())
	seedVideo(t, repo, "v2", "Two", "", "", time.Now())
	assert.Equal(t, 2, count())
}

func TestVideoRepository_QueryHonorsCancellation(t *testing.T) {
	repo := NewVideoRepository()
	seedVideo(t, repo, "v1", "One", "", "", time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range repo.Query(ctx, repository.VideoFilter{}) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestUserRepository_CaseInsensitiveEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "user_1", Email: "Ann@Example.com", Role: domain.RoleCreator}))

	u, err := repo.GetByEmail(ctx, "ann@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
	assert.Equal(t, "ann@example.com", u.Email)

	err = repo.Create(ctx, &domain.User{ID: "user_2", Email: "ANN@example.com"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	_, err = repo.GetByID(ctx, "user_9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
