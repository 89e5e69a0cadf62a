package mongo

import (
	"alcyxob/video-catalog/internal/repository"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSearchFilter_Empty(t *testing.T) {
	assert.Equal(t, bson.M{}, searchFilter(""))
	assert.Equal(t, bson.M{}, searchFilter("   "))
}

func TestSearchFilter_EscapesAndIgnoresCase(t *testing.T) {
	f := searchFilter("a.b(c")
	or, ok := f["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 3)

	for i, field := range []string{"title", "genre", "publisher"} {
		re, ok := or[i][field].(primitive.Regex)
		require.True(t, ok, "field %s", field)
		assert.Equal(t, `a\.b\(c`, re.Pattern)
		assert.Equal(t, "i", re.Options)
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	err := classify(fmt.Errorf("op: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, repository.ErrUnavailable)

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}
