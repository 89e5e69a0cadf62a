package domain

import (
	"slices"
	"time"
)

// ApplyRating records score for userID and recomputes the average rating.
// An existing rating by the same user is overwritten in place, keeping its
// original CreatedAt. The input video is not modified.
//
// The average is the exact arithmetic mean; rounding is left to callers.
func ApplyRating(v Video, userID string, score int, now time.Time) Video {
	out := v.Clone()
	ratings := out.Ratings
	if ratings == nil {
		ratings = make(map[string]Rating, 1)
	}

	if existing, ok := ratings[userID]; ok {
		existing.Score = score
		existing.UpdatedAt = now
		ratings[userID] = existing
	} else {
		ratings[userID] = Rating{
			UserID:    userID,
			Score:     score,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	out.Ratings = ratings
	out.AvgRating = averageScore(ratings)
	return out
}

// AppendComment adds c to the end of the video's comment list. The input
// video is not modified.
func AppendComment(v Video, c Comment) Video {
	out := v.Clone()
	out.Comments = append(slices.Clip(out.Comments), c)
	return out
}

func averageScore(ratings map[string]Rating) *float64 {
	if len(ratings) == 0 {
		return nil
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	avg := float64(sum) / float64(len(ratings))
	return &avg
}
