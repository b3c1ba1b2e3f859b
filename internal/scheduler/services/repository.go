package services

import (
	"context"
	"time"

	"go-killtracker/internal/scheduler/models"
	"go-killtracker/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// taskRunRetention controls how long completed run records stay around.
// Enforced by a TTL index on started_at.
const taskRunRetention = 7 * 24 * time.Hour

type Repository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

func NewRepository(db *database.MongoDB) *Repository {
	return &Repository{
		db:         db,
		collection: db.Collection(models.TaskRunsCollection),
	}
}

// Insert records a finished task run. Runs are written once, after the
// task completed, failed or was dropped; they are never updated.
func (r *Repository) Insert(ctx context.Context, run *models.TaskRun) error {
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

// ListRecent returns the most recent task runs, newest first. An empty
// taskType returns runs of every type.
func (r *Repository) ListRecent(ctx context.Context, taskType models.TaskType, limit int) ([]models.TaskRun, error) {
	filter := bson.M{}
	if taskType != "" {
		filter["type"] = taskType
	}

	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []models.TaskRun
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// CountByStatus aggregates run counts per status since the given instant.
func (r *Repository) CountByStatus(ctx context.Context, since time.Time) (map[models.TaskStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"started_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.TaskStatus `bson:"_id"`
		Count  int64             `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CreateIndexes creates necessary indexes for the task_runs collection
func (r *Repository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "started_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(taskRunRetention.Seconds())),
		},
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "started_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
