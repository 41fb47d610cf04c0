package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
)

// Token audiences. One audience per flow: a token minted for one audience
// must never validate against another flow's verifier.
const (
	AudienceSession     = "playrbase:session"
	AudienceVerifyEmail = "playrbase:verify-email"
	AudienceChangeEmail = "playrbase:change-email"
)

// ErrInvalidToken is returned for any malformed, expired, tampered or
// wrong-audience token. Callers never see the underlying parse error.
var ErrInvalidToken = errors.New("invalid token")

// signingMethod is the only accepted algorithm. Verification pins it so a
// token signed with any other method is rejected outright.
var signingMethod = jwt.SigningMethodHS512

// TokenManager issues and verifies all tokens from a single injected
// signing secret. Verification is a pure function of the token, the secret
// and the clock; no server-side state is consulted.
type TokenManager struct {
	secret []byte
	issuer string
	cfg    config.AuthConfig
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.SigningSecret),
		issuer: cfg.Issuer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock overrides the manager's clock. Used by tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// SessionClaims describes the payload of a session token.
type SessionClaims struct {
	Scope domain.Scope `json:"sc"`
	jwt.RegisteredClaims
}

// VerificationClaims describes the payload of a flow verification token.
// Subject is either an account id or a raw email (pre-account magic link);
// Email carries the address an email-change applies.
type VerificationClaims struct {
	Scope domain.Scope `json:"sc"`
	Email string       `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issue mints a session token for the subject. The expiry is issue time
// plus the scope's configured max age (1 hour for unconfigured scopes).
func (tm *TokenManager) Issue(subjectID string, scope domain.Scope) (string, time.Duration, error) {
	maxAge := tm.cfg.TTLForScope(string(scope))
	now := tm.now()

	claims := &SessionClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(tm.secret)
	if err != nil {
		return "", 0, err
	}
	return token, maxAge, nil
}

// Verify checks a session token against the pinned algorithm, issuer and
// audience. Any mismatch yields ErrInvalidToken.
func (tm *TokenManager) Verify(tokenStr string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, tm.keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(AudienceSession),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueVerification mints a flow token (magic link, email change, revert)
// bound to the given audience. Subject may be an account id or a raw email.
func (tm *TokenManager) IssueVerification(subject string, scope domain.Scope, audience, email string, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &VerificationClaims{
		Scope: scope,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(signingMethod, claims).SignedString(tm.secret)
}

// VerifyVerification checks a flow token against one specific audience.
// Tokens minted for any other audience fail, keeping the flows isolated.
func (tm *TokenManager) VerifyVerification(tokenStr, audience string) (*VerificationClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &VerificationClaims{}, tm.keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*VerificationClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != signingMethod {
		return nil, errors.New("unexpected signing method")
	}
	return tm.secret, nil
}
