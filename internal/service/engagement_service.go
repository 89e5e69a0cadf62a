package service

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/metrics"
	"alcyxob/video-catalog/internal/repository"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const MaxCommentLength = 2000

type CommentInput struct {
	UserID    string
	UserEmail string
	Text      string
}

type RatingInput struct {
	UserID string
	Score  int
}

// RetryPolicy bounds the optimistic-concurrency loop for one engagement call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Deadline    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    200 * time.Millisecond,
		Deadline:    5 * time.Second,
	}
}

// backoff returns a jittered delay for the given retry (1-based).
func (p RetryPolicy) backoff(retry int) time.Duration {
	delay := p.MaxDelay
	if retry < 32 {
		delay = p.BaseDelay << (retry - 1)
	}
	if delay <= 0 || delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	half := delay / 2
	return half + rand.N(half+1)
}

// EngagementService applies comments and ratings through versioned updates.
type EngagementService interface {
	AddComment(ctx context.Context, videoID string, input CommentInput) (*domain.Video, error)
	AddRating(ctx context.Context, videoID string, input RatingInput) (*domain.Video, error)
}

type engagementService struct {
	videoRepo repository.VideoRepository
	policy    RetryPolicy
	metrics   *metrics.Collector
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewEngagementService(videoRepo repository.VideoRepository, policy RetryPolicy, collector *metrics.Collector, logger logrus.FieldLogger) EngagementService {
	defaults := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaults.BaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = max(defaults.MaxDelay, policy.BaseDelay)
	}
	if policy.Deadline <= 0 {
		policy.Deadline = defaults.Deadline
	}
	return &engagementService{
		videoRepo: videoRepo,
		policy:    policy,
		metrics:   collector,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *engagementService) AddComment(ctx context.Context, videoID string, input CommentInput) (*domain.Video, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, fmt.Errorf("%w: comment is longer than %d characters", ErrValidation, MaxCommentLength)
	}
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	comment := domain.Comment{
		UserID:    input.UserID,
		UserEmail: input.UserEmail,
		Text:      text,
		CreatedAt: s.now(),
	}
	return s.updateWithRetry(ctx, "comment", videoID, func(v domain.Video) domain.Video {
		return domain.AppendComment(v, comment)
	})
}

func (s *engagementService) AddRating(ctx context.Context, videoID string, input RatingInput) (*domain.Video, error) {
	if input.Score < domain.MinScore || input.Score > domain.MaxScore {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, domain.MinScore, domain.MaxScore)
	}
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	now := s.now()
	return s.updateWithRetry(ctx, "rate", videoID, func(v domain.Video) domain.Video {
		return domain.ApplyRating(v, input.UserID, input.Score, now)
	})
}

// updateWithRetry reads the current version, attempts the conditional update
// and starts over on conflict until the attempt budget or the deadline runs
// out, which yields ErrBusy.
func (s *engagementService) updateWithRetry(parent context.Context, op, videoID string, mutate repository.VideoMutator) (*domain.Video, error) {
	ctx, cancel := context.WithTimeout(parent, s.policy.Deadline)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"op": op, "video_id": videoID})

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(s.policy.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, s.deadlineErr(parent, op, log)
			case <-timer.C:
			}
		}

		current, err := s.videoRepo.GetByID(ctx, videoID)
		if err != nil {
			return nil, s.mapUpdateErr(parent, ctx, op, log, err)
		}

		updated, err := s.videoRepo.Update(ctx, videoID, current.Version, mutate)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.mapUpdateErr(parent, ctx, op, log, err)
		}
		s.metrics.UpdateConflict(op)
		log.WithField("attempt", attempt).Debug("version conflict, retrying")
	}

	s.metrics.EngagementBusy(op)
	log.WithField("attempts", s.policy.MaxAttempts).Warn("retry budget exhausted")
	return nil, ErrBusy
}

func (s *engagementService) mapUpdateErr(parent, ctx context.Context, op string, log logrus.FieldLogger, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVideoNotFound
	}
	if ctx.Err() != nil {
		return s.deadlineErr(parent, op, log)
	}
	return err
}

// deadlineErr distinguishes the caller going away from our own deadline.
func (s *engagementService) deadlineErr(parent context.Context, op string, log logrus.FieldLogger) error {
	if err := parent.Err(); err != nil {
		return err
	}
	s.metrics.EngagementBusy(op)
	log.Warn("retry deadline exceeded")
	return ErrBusy
}
