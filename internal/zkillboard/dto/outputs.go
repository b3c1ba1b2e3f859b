package dto

import (
	"time"
)

// ServiceStatusOutput represents the status of the RedisQ ingest service
type ServiceStatusOutput struct {
	Body ServiceStatusResponse `json:"body" doc:"RedisQ ingest service status"`
}

// ServiceStatusResponse is the ingest status payload.
type ServiceStatusResponse struct {
	Status         string            `json:"status" doc:"Ingest status (idle, running)"`
	QueueID        string            `json:"queue_id" doc:"Unique RedisQ queue identifier"`
	LastRun        *RunSummary       `json:"last_run,omitempty" doc:"Summary of the most recent run"`
	Metrics        ServiceMetrics    `json:"metrics" doc:"Ingest counters since process start"`
	Config         ServiceConfig     `json:"config" doc:"Ingest configuration"`
	GameServer     *GameServerStatus `json:"game_server,omitempty" doc:"EVE server state as seen from ESI"`
	ESIErrorBudget *ESIErrorBudget   `json:"esi_error_budget,omitempty" doc:"Remaining ESI error budget"`
	Message        string            `json:"message,omitempty" doc:"Status message"`
}

// GameServerStatus reports whether the game server is up. A quiet feed
// while the server is down is expected, not an ingest fault.
type GameServerStatus struct {
	Online        bool   `json:"online" doc:"Whether the game server is reachable"`
	Players       int    `json:"players,omitempty" doc:"Players currently online"`
	ServerVersion string `json:"server_version,omitempty" doc:"Game server version"`
	Error         string `json:"error,omitempty" doc:"Why the server state could not be determined"`
}

// ESIErrorBudget is the error allowance ESI grants per window. At zero
// ESI rejects every request until the window resets, which would stall
// killmail hydration entirely.
type ESIErrorBudget struct {
	Remain        int       `json:"remain" doc:"Errors left in the current window"`
	WindowSeconds int       `json:"window_seconds" doc:"Window length in seconds"`
	ResetAt       time.Time `json:"reset_at" doc:"When the window resets"`
}

// RunSummary describes one completed ingest run
type RunSummary struct {
	StartedAt time.Time `json:"started_at" doc:"When the run started"`
	Duration  string    `json:"duration" doc:"How long the run took"`
	Received  int       `json:"received" doc:"Killmails received during the run"`
	Submitted int       `json:"submitted" doc:"Killmails handed to the pipeline"`
	Malformed int       `json:"malformed" doc:"Packages discarded as malformed"`
	Reason    string    `json:"reason" doc:"Why the run ended"`
}

// ServiceMetrics represents counters for the ingest service
type ServiceMetrics struct {
	TotalRuns         int64 `json:"total_runs" doc:"Completed ingest runs"`
	TotalPolls        int64 `json:"total_polls" doc:"Long-poll requests made"`
	EmptyResponses    int64 `json:"empty_responses" doc:"Polls that returned a null package"`
	KillmailsReceived int64 `json:"killmails_received" doc:"Killmails accepted from the feed"`
	MalformedPackages int64 `json:"malformed_packages" doc:"Packages discarded as malformed"`
	UpstreamErrors    int64 `json:"upstream_errors" doc:"Runs ended by an upstream anomaly"`
	SinkErrors        int64 `json:"sink_errors" doc:"Killmails the pipeline failed to accept"`
	LastKillmailID    int64 `json:"last_killmail_id" doc:"Most recent killmail ID seen"`
}

// ServiceConfig represents the current ingest configuration
type ServiceConfig struct {
	Endpoint           string `json:"endpoint" doc:"RedisQ endpoint URL"`
	QueueID            string `json:"queue_id" doc:"RedisQ queue identifier"`
	TTW                int    `json:"ttw" doc:"Long-poll wait time (seconds)"`
	MaxKillmailsPerRun int    `json:"max_killmails_per_run" doc:"Killmail cap per run"`
	MaxDurationPerRun  string `json:"max_duration_per_run" doc:"Wall-clock cap per run"`
}

// RunIngestOutput represents the result of a manually triggered ingest run
type RunIngestOutput struct {
	Body RunIngestResponse `json:"body" doc:"Ingest run result"`
}

// RunIngestResponse represents the actual run result
type RunIngestResponse struct {
	Started   bool   `json:"started" doc:"False when another instance held the ingest lock"`
	Received  int    `json:"received" doc:"Killmails received during the run"`
	Submitted int    `json:"submitted" doc:"Killmails handed to the pipeline"`
	Malformed int    `json:"malformed" doc:"Packages discarded as malformed"`
	Duration  string `json:"duration" doc:"How long the run took"`
	Reason    string `json:"reason" doc:"Why the run ended"`
	Message   string `json:"message,omitempty" doc:"Result message"`
}
