package domain

import (
	"maps"
	"slices"
	"time"
)

// AgeRating is the audience classification of a video.
type AgeRating string

const (
	AgeRatingU  AgeRating = "U"
	AgeRatingPG AgeRating = "PG"
	AgeRating12 AgeRating = "12"
	AgeRating15 AgeRating = "15"
	AgeRating18 AgeRating = "18"
)

// Valid reports whether a is one of the known classifications.
func (a AgeRating) Valid() bool {
	switch a {
	case AgeRatingU, AgeRatingPG, AgeRating12, AgeRating15, AgeRating18:
		return true
	}
	return false
}

const (
	MinScore = 1
	MaxScore = 5
)

// Video is a catalog entry. The binary payload lives in object storage; the
// document only carries the capability URL and the storage key.
type Video struct {
	ID           string            `bson:"_id" json:"id"`
	Title        string            `bson:"title" json:"title"`
	Publisher    string            `bson:"publisher" json:"publisher"`
	Producer     string            `bson:"producer" json:"producer"`
	Genre        string            `bson:"genre" json:"genre"`
	AgeRating    AgeRating         `bson:"ageRating" json:"ageRating"`
	MediaLocator string            `bson:"mediaLocator" json:"mediaLocator"` // Signed, expiring read URL
	ObjectKey    string            `bson:"objectKey" json:"-"`               // Key in the object store - internal use
	ContentType  string            `bson:"contentType" json:"contentType"`
	SizeBytes    int64             `bson:"sizeBytes" json:"sizeBytes"`
	UploaderID   string            `bson:"uploaderId" json:"uploaderId"`
	CreatedAt    time.Time         `bson:"createdAt" json:"createdAt"`
	Comments     []Comment         `bson:"comments" json:"comments"`
	Ratings      map[string]Rating `bson:"ratings" json:"ratings"` // Keyed by user ID
	AvgRating    *float64          `bson:"avgRating,omitempty" json:"avgRating,omitempty"`
	Version      int64             `bson:"version" json:"version"`
}

// Comment is immutable once appended.
type Comment struct {
	UserID    string    `bson:"userId" json:"userId"`
	UserEmail string    `bson:"userEmail" json:"userEmail"` // Snapshot at post time
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Rating is a single user's score for a video. A later submission by the
// same user overwrites Score in place.
type Rating struct {
	UserID    string    `bson:"userId" json:"userId"`
	Score     int       `bson:"score" json:"score"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy of v that shares no mutable state with it.
func (v Video) Clone() Video {
	out := v
	out.Comments = slices.Clone(v.Comments)
	out.Ratings = maps.Clone(v.Ratings)
	if v.AvgRating != nil {
		avg := *v.AvgRating
		out.AvgRating = &avg
	}
	return out
}
