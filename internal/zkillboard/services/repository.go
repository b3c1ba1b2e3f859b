package services

import (
	"context"
	"fmt"
	"time"

	"go-killtracker/internal/zkillboard/models"
	"go-killtracker/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists ingest state between runs
type Repository struct {
	db              *database.MongoDB
	stateCollection *mongo.Collection
}

// NewRepository creates a new repository instance
func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:              db,
		stateCollection: db.Collection(models.IngestStateCollection),
	}
}

// CreateIndexes creates the indexes the ingest state lookups need
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "queue_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}

	if _, err := r.stateCollection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create ingest state indexes: %w", err)
	}

	return nil
}

// SaveState writes the ingest state for a queue ID, creating it on first use
func (r *Repository) SaveState(ctx context.Context, state *models.IngestState) error {
	state.UpdatedAt = time.Now().UTC()

	filter := bson.M{"queue_id": state.QueueID}
	opts := options.Replace().SetUpsert(true)

	if _, err := r.stateCollection.ReplaceOne(ctx, filter, state, opts); err != nil {
		return fmt.Errorf("failed to save ingest state: %w", err)
	}

	return nil
}

// GetState retrieves the ingest state for a queue ID
func (r *Repository) GetState(ctx context.Context, queueID string) (*models.IngestState, error) {
	var state models.IngestState

	filter := bson.M{"queue_id": queueID}
	err := r.stateCollection.FindOne(ctx, filter).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ingest state: %w", err)
	}

	return &state, nil
}

// GetLatestState retrieves the most recently updated ingest state
func (r *Repository) GetLatestState(ctx context.Context) (*models.IngestState, error) {
	var state models.IngestState

	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	err := r.stateCollection.FindOne(ctx, bson.M{}, opts).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest ingest state: %w", err)
	}

	return &state, nil
}
