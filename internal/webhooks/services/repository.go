package services

import (
	"context"
	"time"

	"go-killtracker/internal/webhooks/models"
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
		collection: db.Collection(models.WebhooksCollection),
	}
}

// Create inserts a new webhook
func (r *Repository) Create(ctx context.Context, webhook *models.Webhook) error {
	_, err := r.collection.InsertOne(ctx, webhook)
	return err
}

// GetByID retrieves a webhook by its ID, nil if not found
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&webhook)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &webhook, nil
}

// Exists reports whether a webhook with the given ID exists
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update replaces a webhook document in full
func (r *Repository) Update(ctx context.Context, webhook *models.Webhook) error {
	opts := options.Replace().SetUpsert(false)
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": webhook.ID}, webhook, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a webhook and reports whether it existed
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

// List returns all webhooks sorted by name
func (r *Repository) List(ctx context.Context) ([]models.Webhook, error) {
	return r.find(ctx, bson.M{})
}

// ListEnabled returns the webhooks that currently accept messages
func (r *Repository) ListEnabled(ctx context.Context) ([]models.Webhook, error) {
	return r.find(ctx, bson.M{"is_enabled": true})
}

func (r *Repository) find(ctx context.Context, filter bson.M) ([]models.Webhook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var webhooks []models.Webhook
	if err := cursor.All(ctx, &webhooks); err != nil {
		return nil, err
	}

	return webhooks, nil
}

// SetEnabled flips a webhook on or off
func (r *Repository) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_enabled": enabled, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// Count counts all webhooks
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// CreateIndexes creates necessary indexes for the webhooks collection
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "is_enabled", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
