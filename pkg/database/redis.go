package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go-killtracker/pkg/config"
)

// Redis wraps the go-redis client with optional tracing. Queues and locks
// reach through Client directly for list and script commands; the methods
// here cover the key/value surface the caches and resolvers use.
type Redis struct {
	Client *redis.Client
	tracer trace.Tracer
}

// NewRedis connects using REDIS_URL and verifies the connection
func NewRedis(ctx context.Context) (*Redis, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("Connected to Redis at: %s", opt.Addr)

	r := &Redis{Client: client}
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		r.tracer = otel.Tracer("redis-client")
	}
	return r, nil
}

// NewRedisFromClient wraps an existing client. Used by tests that run against
// an embedded Redis.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// span opens a tracing span for one command when telemetry is on. The
// returned finish func records the command error and ends the span.
func (r *Redis) span(ctx context.Context, op string, keys ...string) (context.Context, func(error)) {
	if r.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := r.tracer.Start(ctx, "redis."+op,
		trace.WithAttributes(
			attribute.String("redis.operation", op),
			attribute.StringSlice("redis.keys", keys),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, finish := r.span(ctx, "set", key)
	err := r.Client.Set(ctx, key, value, expiration).Err()
	finish(err)
	return err
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, finish := r.span(ctx, "get", key)
	result, err := r.Client.Get(ctx, key).Result()
	finish(err)
	return result, err
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	ctx, finish := r.span(ctx, "del", keys...)
	err := r.Client.Del(ctx, keys...).Err()
	finish(err)
	return err
}

func (r *Redis) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, finish := r.span(ctx, "exists", keys...)
	count, err := r.Client.Exists(ctx, keys...).Result()
	finish(err)
	return count, err
}

// SetJSON marshals a value and stores it with an expiration
func (r *Redis) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	ctx, finish := r.span(ctx, "set_json", key)
	err = r.Client.Set(ctx, key, data, expiration).Err()
	finish(err)
	return err
}

// GetJSON fetches a key and unmarshals it into dest. Absent keys surface as
// redis.Nil, same as Get.
func (r *Redis) GetJSON(ctx context.Context, key string, dest interface{}) error {
	ctx, finish := r.span(ctx, "get_json", key)
	data, err := r.Client.Get(ctx, key).Result()
	finish(err)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// HealthCheck pings Redis with a short deadline
func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}
