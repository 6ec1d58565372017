package domain

import "time"

// UserInfo holds free-form identity details captured at registration.
type UserInfo struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Usage tracks authenticated use of a registered credential.
type Usage struct {
	TotalRequests int64     `json:"total_requests"`
	LastRequestAt time.Time `json:"last_request_at,omitempty"`
}

// UserRecord represents one registered credential holder. The record wraps a
// long-lived Slack user token behind an API key minted by this server.
type UserRecord struct {
	ID                string    `json:"id"`
	APIKey            string    `json:"api_key"`
	PlatformToken     string    `json:"platform_token"`
	PlatformTokenHash string    `json:"platform_token_hash"`
	CreatedAt         time.Time `json:"created_at"`
	LastUsed          time.Time `json:"last_used,omitempty"`
	Active            bool      `json:"active"`
	Usage             Usage     `json:"usage"`
	UserInfo          UserInfo  `json:"user_info,omitempty"`
}

// SanitizedUser is a UserRecord with both credentials stripped, safe for
// listing endpoints.
type SanitizedUser struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used,omitempty"`
	Active    bool      `json:"active"`
	Usage     Usage     `json:"usage"`
	UserInfo  UserInfo  `json:"user_info,omitempty"`
}

// Sanitize strips credential material from the record.
func (u *UserRecord) Sanitize() SanitizedUser {
	return SanitizedUser{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		LastUsed:  u.LastUsed,
		Active:    u.Active,
		Usage:     u.Usage,
		UserInfo:  u.UserInfo,
	}
}
