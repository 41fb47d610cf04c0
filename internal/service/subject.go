package service

import (
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

// Subject identifies the caller of a permit or email flow: either an
// existing account, or a pre-account holder of a valid magic-link token
// whose subject is the email the link was sent to.
type Subject struct {
	AccountID string
	Email     string
}

// Key returns the stable identifier permits are stored under.
func (s Subject) Key() string {
	if s.AccountID != "" {
		return s.AccountID
	}
	return s.Email
}

// PreAccount reports whether the subject has no account yet.
func (s Subject) PreAccount() bool {
	return s.AccountID == ""
}

// ResolveSubject derives the caller identity from an authenticated session
// or, failing that, a pre-account magic-link verification token. Shared by
// the birthdate permit handlers and profile completion.
func ResolveSubject(session *auth.Session, preAccountToken string, tokens *auth.TokenManager) (Subject, error) {
	if session != nil {
		return Subject{AccountID: session.Claims.Subject}, nil
	}

	if preAccountToken == "" {
		return Subject{}, apperrors.NewUnauthorized(apperrors.CodeMissingToken)
	}

	claims, err := tokens.VerifyVerification(preAccountToken, auth.AudienceVerifyEmail)
	if err != nil {
		return Subject{}, apperrors.NewUnauthorized(apperrors.CodeInvalidCredentials)
	}
	if !domain.EmailShaped(claims.Subject) {
		return Subject{}, apperrors.NewBadRequest(apperrors.CodeInvalidTokenSubject)
	}
	return Subject{Email: claims.Subject}, nil
}
