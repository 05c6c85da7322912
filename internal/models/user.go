package models

import "time"

// User is an account that owns sessions and uploads.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Preferences hold per-user routing defaults and chat behavior toggles.
type Preferences struct {
	UserID           int64  `json:"user_id"`
	DefaultModel     string `json:"default_model"`
	PreferSpeed      bool   `json:"prefer_speed"`
	ResponseStyle    string `json:"response_style"`
	AutoSummarize    bool   `json:"auto_summarize"`
	SmartSuggestions bool   `json:"smart_suggestions"`
}
