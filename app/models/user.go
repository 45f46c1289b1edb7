package models

import "time"

// User mirrors the identity supplied by Auth0. Rows exist so billing and
// usage records have something stable to hang off; the auth provider owns
// the canonical record.
type User struct {
	Auth0Sub  string    `json:"auth0_sub"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	LastLogin time.Time `json:"last_login"`
}
