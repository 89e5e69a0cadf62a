package mongo

import (
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const videoCollectionName = "videos"

// mongoVideoRepository implements repository.VideoRepository
type mongoVideoRepository struct {
	collection *mongo.Collection
}

// NewMongoVideoRepository creates a new Video repository backed by MongoDB.
func NewMongoVideoRepository(db *mongo.Database) repository.VideoRepository {
	return &mongoVideoRepository{
		collection: db.Collection(videoCollectionName),
	}
}

// Create inserts a new video document.
func (r *mongoVideoRepository) Create(ctx context.Context, video *domain.Video) error {
	if video.ID == "" {
		return errors.New("video id is required")
	}
	if _, err := r.collection.InsertOne(ctx, video); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert video: %w", classify(err))
	}
	return nil
}

// GetByID retrieves a video by its ID.
func (r *mongoVideoRepository) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	var video domain.Video
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&video)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find video: %w", classify(err))
	}
	return &video, nil
}

// Query streams matching videos from a server-side cursor, newest first.
func (r *mongoVideoRepository) Query(ctx context.Context, filter repository.VideoFilter) iter.Seq2[domain.Video, error] {
	query := searchFilter(filter.Search)
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	return func(yield func(domain.Video, error) bool) {
		cursor, err := r.collection.Find(ctx, query, findOptions)
		if err != nil {
			yield(domain.Video{}, fmt.Errorf("find videos: %w", classify(err)))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var video domain.Video
			if err := cursor.Decode(&video); err != nil {
				yield(domain.Video{}, fmt.Errorf("decode video: %w", err))
				return
			}
			if !yield(video, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(domain.Video{}, fmt.Errorf("iterate videos: %w", classify(err)))
		}
	}
}

// Update replaces the document only while its stored version still equals
// expectedVersion. The version check happens twice: once on the read, so a
// stale caller never runs its mutator, and once in the replace filter, so a
// writer that raced in between wins and this call reports ErrConflict.
func (r *mongoVideoRepository) Update(ctx context.Context, id string, expectedVersion int64, mutate repository.VideoMutator) (*domain.Video, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, repository.ErrConflict
	}

	next := repository.Prepare(*current, mutate)

	filter := bson.M{"_id": id, "version": expectedVersion}
	result, err := r.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return nil, fmt.Errorf("replace video: %w", classify(err))
	}
	if result.MatchedCount == 0 {
		return nil, repository.ErrConflict
	}
	return &next, nil
}

func searchFilter(search string) bson.M {
	search = strings.TrimSpace(search)
	if search == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	return bson.M{"$or": []bson.M{
		{"title": pattern},
		{"genre": pattern},
		{"publisher": pattern},
	}}
}

// EnsureVideoIndexes creates necessary indexes for the videos collection.
func EnsureVideoIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Listing is always newest first
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "uploaderId", Value: 1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), classify(err))
	}
	return nil
}
