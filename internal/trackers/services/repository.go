package services

import (
	"context"
	"time"

	"go-killtracker/internal/trackers/models"
	"go-killtracker/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:         db,
		collection: db.Collection(models.TrackersCollection),
	}
}

// Create inserts a new tracker
func (r *Repository) Create(ctx context.Context, tracker *models.Tracker) error {
	_, err := r.collection.InsertOne(ctx, tracker)
	return err
}

// GetByID retrieves a tracker by its ID, nil if not found
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Tracker, error) {
	var tracker models.Tracker
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tracker)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &tracker, nil
}

// Update replaces a tracker document in full
func (r *Repository) Update(ctx context.Context, tracker *models.Tracker) error {
	opts := options.Replace().SetUpsert(false)
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": tracker.ID}, tracker, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a tracker and reports whether it existed
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

// List returns all trackers sorted by name
func (r *Repository) List(ctx context.Context) ([]models.Tracker, error) {
	return r.find(ctx, bson.M{})
}

// ListEnabled returns the trackers the evaluation fan-out runs, sorted by
// name for stable iteration order
func (r *Repository) ListEnabled(ctx context.Context) ([]models.Tracker, error) {
	return r.find(ctx, bson.M{"is_enabled": true})
}

// ListByWebhook returns all trackers posting to one webhook
func (r *Repository) ListByWebhook(ctx context.Context, webhookID string) ([]models.Tracker, error) {
	return r.find(ctx, bson.M{"webhook_id": webhookID})
}

func (r *Repository) find(ctx context.Context, filter bson.M) ([]models.Tracker, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var trackers []models.Tracker
	if err := cursor.All(ctx, &trackers); err != nil {
		return nil, err
	}

	return trackers, nil
}

// SetEnabled flips a tracker on or off without touching its clauses
func (r *Repository) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_enabled": enabled, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// Count counts all trackers
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// CreateIndexes creates necessary indexes for the trackers collection
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "is_enabled", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "webhook_id", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
