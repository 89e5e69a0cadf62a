package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRating_InsertsAndAverages(t *testing.T) {
	now := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	v := Video{ID: "video_1"}

	v = ApplyRating(v, "u2", 4, now)
	v = ApplyRating(v, "u3", 2, now)

	require.Len(t, v.Ratings, 2)
	require.NotNil(t, v.AvgRating)
	assert.Equal(t, 3.0, *v.AvgRating)
}

func TestApplyRating_SameUserOverwritesInPlace(t *testing.T) {
	first := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	v := ApplyRating(Video{}, "u1", 5, first)
	v = ApplyRating(v, "u1", 2, second)

	require.Len(t, v.Ratings, 1)
	r := v.Ratings["u1"]
	assert.Equal(t, 2, r.Score)
	assert.Equal(t, first, r.CreatedAt)
	assert.Equal(t, second, r.UpdatedAt)
	assert.Equal(t, 2.0, *v.AvgRating)
}

func TestApplyRating_KeepsExactMean(t *testing.T) {
	now := time.Now()
	v := ApplyRating(Video{}, "a", 5, now)
	v = ApplyRating(v, "b", 4, now)
	v = ApplyRating(v, "c", 4, now)

	assert.InDelta(t, 13.0/3.0, *v.AvgRating, 1e-12)
}

func TestApplyRating_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	orig := ApplyRating(Video{}, "a", 1, now)
	avgBefore := *orig.AvgRating

	_ = ApplyRating(orig, "a", 5, now)
	_ = ApplyRating(orig, "b", 5, now)

	assert.Len(t, orig.Ratings, 1)
	assert.Equal(t, 1, orig.Ratings["a"].Score)
	assert.Equal(t, avgBefore, *orig.AvgRating)
}

func TestAppendComment(t *testing.T) {
	now := time.Now()
	orig := Video{Comments: make([]Comment, 1, 4)}
	orig.Comments[0] = Comment{UserID: "u0", Text: "first"}

	a := AppendComment(orig, Comment{UserID: "u1", Text: "nice", CreatedAt: now})
	b := AppendComment(orig, Comment{UserID: "u2", Text: "meh", CreatedAt: now})

	require.Len(t, a.Comments, 2)
	require.Len(t, b.Comments, 2)
	assert.Equal(t, "nice", a.Comments[1].Text)
	assert.Equal(t, "meh", b.Comments[1].Text)
	assert.Len(t, orig.Comments, 1)
}

func TestAppendComment_EmptyVideo(t *testing.T) {
	v := AppendComment(Video{}, Comment{Text: "hello"})
	require.Len(t, v.Comments, 1)
	assert.Equal(t, "hello", v.Comments[0].Text)
}

func TestVideoClone_Independent(t *testing.T) {
	avg := 4.0
	v := Video{
		Comments:  []Comment{{Text: "x"}},
		Ratings:   map[string]Rating{"u": {Score: 4}},
		AvgRating: &avg,
	}
	c := v.Clone()
	c.Comments[0].Text = "y"
	c.Ratings["u2"] = Rating{Score: 1}
	*c.AvgRating = 1

	assert.Equal(t, "x", v.Comments[0].Text)
	assert.Len(t, v.Ratings, 1)
	assert.Equal(t, 4.0, *v.AvgRating)
}

func TestEnums(t *testing.T) {
	assert.True(t, AgeRatingPG.Valid())
	assert.False(t, AgeRating("R").Valid())
	assert.True(t, RoleCreator.Valid())
	assert.False(t, Role("admin").Valid())
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
}
