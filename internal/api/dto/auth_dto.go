package dto

import "encoding/json"

// MagicLinkStartRequest payload.
type MagicLinkStartRequest struct {
	Identifier string `json:"identifier"`
	Followup   string `json:"followup"`
}

// ProfileCompletionRequest payload for finishing account creation from a
// pre-account token. Birthdate uses the 2006-01-02 layout.
type ProfileCompletionRequest struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	Permit    string `json:"permit"`
}

// SessionResponse returned whenever a flow mints a session.
type SessionResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Name    string `json:"name,omitempty"`
}

// TokenIntrospectResponse exposes the raw session token and its claims.
type TokenIntrospectResponse struct {
	Success bool           `json:"success"`
	Token   string         `json:"token"`
	Decoded map[string]any `json:"decoded"`
}

// PasskeyChallengeResponse payload.
type PasskeyChallengeResponse struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	Challenge string `json:"challenge"`
}

// PasskeyRegisterRequest payload. Registration carries the raw authenticator
// attestation response as produced by the browser.
type PasskeyRegisterRequest struct {
	ChallengeID  string          `json:"challengeId"`
	Name         string          `json:"name"`
	Registration json.RawMessage `json:"registration"`
}

// PasskeyRegisterResponse payload.
type PasskeyRegisterResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Name    string `json:"name"`
}

// PasskeyAuthenticateRequest payload.
type PasskeyAuthenticateRequest struct {
	ChallengeID string          `json:"challengeId"`
	Assertion   json.RawMessage `json:"assertion"`
}

// BirthdatePermitRequest payload. Token is the pre-account token used when
// no session cookie is present yet.
type BirthdatePermitRequest struct {
	Token       string `json:"token"`
	Birthdate   string `json:"birthdate"`
	ParentEmail string `json:"parent_email"`
}

// BirthdatePermitValidateRequest payload.
type BirthdatePermitValidateRequest struct {
	Token     string `json:"token"`
	Birthdate string `json:"birthdate"`
	Permit    string `json:"permit"`
}

// ChangeEmailRequest payload.
type ChangeEmailRequest struct {
	Email string `json:"email"`
}

// SuccessResponse is the minimal affirmative body.
type SuccessResponse struct {
	Success bool `json:"success"`
}
