package service

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"
	"context"
	"errors"
)

// CatalogService serves read-only catalog queries.
type CatalogService interface {
	List(ctx context.Context, search string) ([]domain.Video, error)
	Get(ctx context.Context, id string) (*domain.Video, error)
}

type catalogService struct {
	videoRepo repository.VideoRepository
}

func NewCatalogService(videoRepo repository.VideoRepository) CatalogService {
	return &catalogService{videoRepo: videoRepo}
}

// List returns every video matching search, newest first. The result is
// never nil so it always encodes as a JSON array.
func (s *catalogService) List(ctx context.Context, search string) ([]domain.Video, error) {
	videos := []domain.Video{}
	for video, err := range s.videoRepo.Query(ctx, repository.VideoFilter{Search: search}) {
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}

func (s *catalogService) Get(ctx context.Context, id string) (*domain.Video, error) {
	video, err := s.videoRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return video, nil
}
