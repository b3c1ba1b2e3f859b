package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const IngestStateCollection = "ingest_state"

// IngestState is the persisted state of the RedisQ ingestor, one document
// per queue ID. It is rewritten after every run so operators can see what
// the ingestor last did, across restarts and across instances.
type IngestState struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	QueueID string             `bson:"queue_id" json:"queue_id"`

	TotalRuns         int64 `bson:"total_runs" json:"total_runs"`
	TotalPolls        int64 `bson:"total_polls" json:"total_polls"`
	EmptyResponses    int64 `bson:"empty_responses" json:"empty_responses"`
	KillmailsReceived int64 `bson:"killmails_received" json:"killmails_received"`
	MalformedPackages int64 `bson:"malformed_packages" json:"malformed_packages"`
	UpstreamErrors    int64 `bson:"upstream_errors" json:"upstream_errors"`
	SinkErrors        int64 `bson:"sink_errors" json:"sink_errors"`
	LastKillmailID    int64 `bson:"last_killmail_id" json:"last_killmail_id"`

	LastRunAt         time.Time `bson:"last_run_at" json:"last_run_at"`
	LastRunDurationMS int64     `bson:"last_run_duration_ms" json:"last_run_duration_ms"`
	LastRunReason     string    `bson:"last_run_reason" json:"last_run_reason"`
	LastRunReceived   int       `bson:"last_run_received" json:"last_run_received"`

	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
