package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"go-killtracker/pkg/config"
)

// MongoDB bundles the connected client with the service database. Module
// repositories get their collections through Collection.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDB connects using MONGODB_URI and selects MONGODB_DATABASE
// (service name by default). Command monitoring is attached when telemetry
// is enabled.
func NewMongoDB(ctx context.Context, serviceName string) (*MongoDB, error) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017/" + serviceName
	}

	opts := options.Client().ApplyURI(uri)
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		opts.SetMonitor(otelmongo.NewMonitor())
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := config.GetEnv("MONGODB_DATABASE", serviceName)
	log.Printf("Connected to MongoDB database: %s", dbName)

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// Collection returns a collection handle in the service database
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}

// HealthCheck pings the primary with a short deadline
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, readpref.Primary())
}
