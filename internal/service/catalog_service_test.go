package service

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository/memory"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListAndGet(t *testing.T) {
	repo := memory.NewVideoRepository()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.Video{ID: "v1", Title: "Comedy Night", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &domain.Video{ID: "v2", Title: "Documentary", Publisher: "ACME", CreatedAt: base.Add(time.Hour)}))

	svc := NewCatalogService(repo)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "v2", all[0].ID)

	found, err := svc.List(ctx, "com")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "v1", found[0].ID)

	none, err := svc.List(ctx, "xyz")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	v, err := svc.Get(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, "Documentary", v.Title)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}
