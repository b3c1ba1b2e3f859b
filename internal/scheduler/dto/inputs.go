package dto

// ListTaskRunsInput filters the run log listing
type ListTaskRunsInput struct {
	Type  string `query:"type" enum:"run_ingest,run_tracker,send_webhook,store_killmail,purge_stale" required:"false" doc:"Only list runs of this task type"`
	Limit int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum number of runs to return"`
}

// TriggerTaskInput starts a task from the API. Tracker evaluation and
// killmail store tasks carry pipeline payloads and cannot be triggered here.
type TriggerTaskInput struct {
	Type string `path:"type" enum:"run_ingest,run_tracker,send_webhook,store_killmail,purge_stale" doc:"Task type to trigger"`
	Key  string `query:"key" required:"false" doc:"Task key; the webhook ID for send_webhook"`
}
