package domain

import "time"

// AuthorizationCode represents one in-flight, single-use credential handoff.
// The payload is whatever credential the connect step stored against the
// code, normally an API key minted during registration.
type AuthorizationCode struct {
	Code      string    `json:"code"`       // Unique authorization code
	Payload   string    `json:"payload"`    // Credential being handed off
	ExpiresAt time.Time `json:"expires_at"` // Expiration timestamp
	CreatedAt time.Time `json:"created_at"` // Creation timestamp
}
