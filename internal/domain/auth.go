package domain

import (
	"strings"
	"time"
)

// Scope is the account class a session token authorizes. Each scope has its
// own session lifetime.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeAdmin  Scope = "admin"
	ScopeAPIKey Scope = "apikey"
)

// ChallengeMethod identifies the flow a challenge belongs to.
type ChallengeMethod string

const (
	MethodPasskeyRegister     ChallengeMethod = "passkey-register"
	MethodPasskeyAuthenticate ChallengeMethod = "passkey-authenticate"
)

// Challenge is a short-lived, single-use secret a client must echo back,
// directly or via a signed assertion, within its time window.
type Challenge struct {
	ID      string
	Method  ChallengeMethod
	Value   string
	Subject string // bound account id, empty for unauthenticated challenges

	// Session carries marshalled verifier state for WebAuthn challenges.
	Session []byte

	CreatedAt time.Time
}

// BirthdatePermit is a parent-issued one-time code gating birthdate writes
// for subjects at or below the age threshold.
type BirthdatePermit struct {
	Subject     string
	Birthdate   time.Time
	Code        string
	ParentEmail string
	CreatedAt   time.Time
}

// PermitAgeThreshold is the age at or below which a parental permit is
// required to set or change a birthdate.
const PermitAgeThreshold = 16

// AgeAt computes age as the calendar-year difference between now and the
// birthdate.
func AgeAt(birthdate, now time.Time) int {
	return now.Year() - birthdate.Year()
}

// PermitRequired reports whether a birthdate claim needs parental approval.
func PermitRequired(birthdate, now time.Time) bool {
	return AgeAt(birthdate, now) <= PermitAgeThreshold
}

// EmailShaped reports whether a token subject is a raw email address rather
// than an account id. Pre-account magic-link tokens carry the email the link
// was sent to.
func EmailShaped(subject string) bool {
	return strings.Contains(subject, "@")
}
