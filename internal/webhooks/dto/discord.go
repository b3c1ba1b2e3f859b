package dto

// DiscordMessage is the webhook execution payload. The formatter marshals
// it once; queues and the sender only ever see the final bytes.
type DiscordMessage struct {
	Content   string         `json:"content,omitempty"`
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed matches Discord's embed JSON structure
type DiscordEmbed struct {
	Title       string            `json:"title,omitempty"`
	URL         string            `json:"url,omitempty"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Footer      *DiscordFooter    `json:"footer,omitempty"`
	Thumbnail   *DiscordThumbnail `json:"thumbnail,omitempty"`
}

type DiscordFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type DiscordThumbnail struct {
	URL string `json:"url,omitempty"`
}

// DiscordRateLimit is the body Discord returns with a 429
type DiscordRateLimit struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
