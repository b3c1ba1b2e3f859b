package services

import (
	"context"
	"time"

	"go-killtracker/internal/killmails/models"
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
		collection: db.Collection(models.KillmailsCollection),
	}
}

// Insert archives a single killmail. The unique index on killmail_id makes
// a duplicate insert fail with a duplicate key error; the service layer
// decides what to do with that.
func (r *Repository) Insert(ctx context.Context, killmail *models.Killmail) error {
	_, err := r.collection.InsertOne(ctx, killmail)
	return err
}

// GetByKillmailID retrieves an archived killmail by its killmail ID
func (r *Repository) GetByKillmailID(ctx context.Context, killmailID int64) (*models.Killmail, error) {
	var killmail models.Killmail
	err := r.collection.FindOne(ctx, bson.M{"killmail_id": killmailID}).Decode(&killmail)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &killmail, nil
}

// GetRecent returns the newest archived killmails, most recent first
func (r *Repository) GetRecent(ctx context.Context, limit int) ([]models.Killmail, error) {
	return r.find(ctx, bson.M{}, limit)
}

// GetRecentBySystem returns archived killmails in a solar system since a
// given instant, most recent first
func (r *Repository) GetRecentBySystem(ctx context.Context, systemID int, since time.Time, limit int) ([]models.Killmail, error) {
	filter := bson.M{
		"solar_system_id": systemID,
		"killmail_time":   bson.M{"$gte": since},
	}
	return r.find(ctx, filter, limit)
}

func (r *Repository) find(ctx context.Context, filter bson.M, limit int) ([]models.Killmail, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "killmail_time", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var killmails []models.Killmail
	if err := cursor.All(ctx, &killmails); err != nil {
		return nil, err
	}

	return killmails, nil
}

// Count counts all archived killmails
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// Exists checks whether a killmail is already archived
func (r *Repository) Exists(ctx context.Context, killmailID int64) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"killmail_id": killmailID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteOlderThan removes archived killmails that occurred before the
// cutoff and reports how many were removed
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"killmail_time": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// CreateIndexes creates necessary indexes for the killmails collection
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "killmail_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "killmail_time", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "solar_system_id", Value: 1},
				{Key: "killmail_time", Value: -1},
			},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
