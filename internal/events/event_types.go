package events

import (
	"time"

	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMagicLinkRequested   EventType = "magic_link_requested"
	EventPermitRequested      EventType = "birthdate_permit_requested"
	EventEmailChangeRequested EventType = "email_change_requested"
	EventUserCreated          EventType = "user_created"
	EventSessionIssued        EventType = "session_issued"
	EventPasskeyRegistered    EventType = "passkey_registered"
)

// Event represents a domain event emitted by the auth flows.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MagicLinkRequestedPayload payload. Link carries the signed verification
// token; it is mailed, never returned in a response.
type MagicLinkRequestedPayload struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// PermitRequestedPayload payload.
type PermitRequestedPayload struct {
	ParentEmail string    `json:"parent_email"`
	Code        string    `json:"code"`
	Birthdate   time.Time `json:"birthdate"`
}

/// EmailChangeRequestedPayload payload. Two links: the confirmation mailed
// to the new address and the revert mailed to the old one.
type EmailChangeRequestedPayload struct {
	OldEmail    string `json:"old_email"`
	NewEmail    string `json:"new_email"`
	ConfirmLink string `json:"confirm_link"`
	RevertLink  string `json:"revert_link"`
}

// UserCreatedPayload payload.
type UserCreatedPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionIssuedPayload payload.
type SessionIssuedPayload struct {
	Scope  domain.Scope `json:"scope"`
	Method string       `json:"method"`
}

// PasskeyRegisteredPayload payload.
type PasskeyRegisteredPayload struct {
	CredentialID string `json:"credential_id"`
	Name         string `json:"name"`
}
