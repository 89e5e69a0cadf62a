package service

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/logging"
	"alcyxob/video-catalog/internal/metrics"
	"alcyxob/video-catalog/internal/repository"
	"alcyxob/video-catalog/internal/repository/memory"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVideo(t *testing.T, repo repository.VideoRepository, id string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Video{
		ID:        id,
		Title:     "Test",
		CreatedAt: time.Now().UTC(),
		Comments:  []domain.Comment{},
		Ratings:   map[string]domain.Rating{},
	}))
}

// conflictingRepo reports a version conflict for the first n updates.
type conflictingRepo struct {
	repository.VideoRepository
	remaining atomic.Int64
	calls     atomic.Int64
}

func (r *conflictingRepo) Update(ctx context.Context, id string, expectedVersion int64, mutate repository.VideoMutator) (*domain.Video, error) {
	r.calls.Add(1)
	if r.remaining.Add(-1) >= 0 {
		return nil, repository.ErrConflict
	}
	return r.VideoRepository.Update(ctx, id, expectedVersion, mutate)
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Deadline: 5 * time.Second}
}

func TestAddRating_ConcurrentUsersAllCounted(t *testing.T) {
	repo := memory.NewVideoRepository()
	seedVideo(t, repo, "v1")
	svc := NewEngagementService(repo, fastPolicy(1000), nil, logging.Discard())

	const n = 20
	var wg sync.WaitGroup
	sum := 0
	for i := 0; i < n; i++ {
		score := i%5 + 1
		sum += score
		wg.Add(1)
		go func(i, score int) {
			defer wg.Done()
			_, err := svc.AddRating(context.Background(), "v1", RatingInput{UserID: fmt.Sprintf("u%d", i), Score: score})
			assert.NoError(t, err)
		}(i, score)
	}
	wg.Wait()

	got, err := repo.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Len(t, got.Ratings, n)
	assert.Equal(t, int64(n), got.Version)
	require.NotNil(t, got.AvgRating)
	assert.InDelta(t, float64(sum)/n, *got.AvgRating, 1e-9)
}

func TestAddRating_SameUserOverwrites(t *testing.T) {
	repo := memory.NewVideoRepository()
	seedVideo(t, repo, "v1")
	svc := NewEngagementService(repo, DefaultRetryPolicy(), nil, logging.Discard())
	ctx := context.Background()

	_, err := svc.AddRating(ctx, "v1", RatingInput{UserID: "u1", Score: 5})
	require.NoError(t, err)
	got, err := svc.AddRating(ctx, "v1", RatingInput{UserID: "u1", Score: 2})
	require.NoError(t, err)

	require.Len(t, got.Ratings, 1)
	assert.Equal(t, 2, got.Ratings["u1"].Score)
	assert.InDelta(t, 2.0, *got.AvgRating, 1e-9)
}

func TestAddRating_Validation(t *testing.T) {
	svc := NewEngagementService(memory.NewVideoRepository(), DefaultRetryPolicy(), nil, logging.Discard())

	for _, score := range []int{0, 6, -1} {
		_, err := svc.AddRating(context.Background(), "v1", RatingInput{UserID: "u1", Score: score})
		assert.ErrorIs(t, err, ErrValidation, "score %d", score)
	}
}

func TestAddRating_MissingVideo(t *testing.T) {
	svc := NewEngagementService(memory.NewVideoRepository(), DefaultRetryPolicy(), nil, logging.Discard())
	_, err := svc.AddRating(context.Background(), "nope", RatingInput{UserID: "u1", Score: 3})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestAddComment_AppendsInOrder(t *testing.T) {
	repo := memory.NewVideoRepository()
	seedVideo(t, repo, "v1")
	svc := NewEngagementService(repo, DefaultRetryPolicy(), nil, logging.Discard())
	ctx := context.Background()

	_, err := svc.AddComment(ctx, "v1", CommentInput{UserID: "u1", UserEmail: "a@x.io", Text: "  first  "})
	require.NoError(t, err)
	got, err := svc.AddComment(ctx, "v1", CommentInput{UserID: "u2", UserEmail: "b@x.io", Text: "second"})
	require.NoError(t, err)

	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Text)
	assert.Equal(t, "second", got.Comments[1].Text)
	assert.Equal(t, "b@x.io", got.Comments[1].UserEmail)
	assert.Equal(t, int64(2), got.Version)
}

func TestAddComment_Validation(t *testing.T) {
	svc := NewEngagementService(memory.NewVideoRepository(), DefaultRetryPolicy(), nil, logging.Discard())
	ctx := context.Background()

	_, err := svc.AddComment(ctx, "v1", CommentInput{UserID: "u1", Text: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddComment(ctx, "v1", CommentInput{UserID: "u1", Text: strings.Repeat("a", MaxCommentLength+1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddComment(ctx, "v1", CommentInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEngagement_CommentAndRatingRaceBothApply(t *testing.T) {
	repo := memory.NewVideoRepository()
	seedVideo(t, repo, "v1")
	svc := NewEngagementService(repo, fastPolicy(1000), nil, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddComment(context.Background(), "v1", CommentInput{UserID: fmt.Sprintf("c%d", i), Text: "hello"})
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddRating(context.Background(), "v1", RatingInput{UserID: fmt.Sprintf("r%d", i), Score: 4})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Len(t, got.Comments, 10)
	assert.Len(t, got.Ratings, 10)
	assert.Equal(t, int64(20), got.Version)
}

func TestEngagement_RetriesThroughConflicts(t *testing.T) {
	base := memory.NewVideoRepository()
	seedVideo(t, base, "v1")
	repo := &conflictingRepo{VideoRepository: base}
	repo.remaining.Store(3)

	collector := metrics.NewCollector(prometheus.NewRegistry())
	svc := NewEngagementService(repo, fastPolicy(5), collector, logging.Discard())

	got, err := svc.AddRating(context.Background(), "v1", RatingInput{UserID: "u1", Score: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(4), repo.calls.Load())
}

func TestEngagement_BusyAfterMaxAttempts(t *testing.T) {
	base := memory.NewVideoRepository()
	seedVideo(t, base, "v1")
	repo := &conflictingRepo{VideoRepository: base}
	repo.remaining.Store(1 << 30)

	svc := NewEngagementService(repo, fastPolicy(5), nil, logging.Discard())

	_, err := svc.AddComment(context.Background(), "v1", CommentInput{UserID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, int64(5), repo.calls.Load())

	stored, err := base.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Empty(t, stored.Comments)
	assert.Equal(t, int64(0), stored.Version)
}

func TestEngagement_BusyAfterDeadline(t *testing.T) {
	base := memory.NewVideoRepository()
	seedVideo(t, base, "v1")
	repo := &conflictingRepo{VideoRepository: base}
	repo.remaining.Store(1 << 30)

	policy := RetryPolicy{MaxAttempts: 1000, BaseDelay: 20 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Deadline: 50 * time.Millisecond}
	svc := NewEngagementService(repo, policy, nil, logging.Discard())

	start := time.Now()
	_, err := svc.AddRating(context.Background(), "v1", RatingInput{UserID: "u1", Score: 1})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEngagement_CallerCancellationIsNotBusy(t *testing.T) {
	base := memory.NewVideoRepository()
	seedVideo(t, base, "v1")
	svc := NewEngagementService(base, DefaultRetryPolicy(), nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.AddRating(ctx, "v1", RatingInput{UserID: "u1", Score: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_BackoffIsCapped(t *testing.T) {
	p := RetryPolicy{BaseDelay: 5 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
	for retry := 1; retry < 70; retry++ {
		d := p.backoff(retry)
		assert.LessOrEqual(t, d, p.MaxDelay)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
	d := p.backoff(1)
	assert.GreaterOrEqual(t, d, 2500*time.Microsecond)
	assert.LessOrEqual(t, d, 5*time.Millisecond)
}
