package dto

// GetKillmailInput represents the input for fetching an archived killmail
type GetKillmailInput struct {
	KillmailID int64 `path:"killmail_id" validate:"required" minimum:"1" doc:"EVE Online killmail ID"`
}

// GetRecentKillmailsInput represents input for listing archived killmails
type GetRecentKillmailsInput struct {
	SystemID int    `query:"system_id" validate:"omitempty,min:30000000" doc:"Filter by solar system ID (optional)"`
	Since    string `query:"since" validate:"omitempty" doc:"Only killmails since this timestamp (RFC3339, optional, defaults to last 24 hours when filtering by system)"`
	Limit    int    `query:"limit" validate:"min:1,max:100" default:"20" doc:"Maximum number of killmails to return (1-100, default 20)"`
}
