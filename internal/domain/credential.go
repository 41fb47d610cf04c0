package domain

import "time"

// Credential is a WebAuthn public-key credential registered by a user. The
// id is the authenticator-supplied credential id (base64url) and is the
// trust anchor for all future assertions from that authenticator.
type Credential struct {
	ID              string
	UserID          string
	Name            string
	PublicKey       []byte
	AttestationType string
	SignCount       uint32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
