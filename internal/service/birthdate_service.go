package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/domain"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/repository"
	apperrors "github.com/theopensource-company/playrbase-auth/pkg/util/errorutil"
)

const permitCodeLength = 6

const permitCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// BirthdateService gates birthdate writes for minors behind a
// parent-approved one-time code.
type BirthdateService struct {
	permits    repository.PermitStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	permitTTL  time.Duration
	now        func() time.Time
}

// BirthdateDependencies bundles requirements for the service.
type BirthdateDependencies struct {
	PermitStore repository.PermitStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewBirthdateService builds the service.
func NewBirthdateService(cfg config.Config, deps BirthdateDependencies) *BirthdateService {
	return &BirthdateService{
		permits:    deps.PermitStore,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		permitTTL:  cfg.Auth.PermitTTL,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *BirthdateService) WithClock(now func() time.Time) *BirthdateService {
	s.now = now
	return s
}

// RequestPermit creates a fresh permit for the subject's claimed birthdate
// and emails the code to the parent. Only valid when the claimed birthdate
// actually requires one.
func (s *BirthdateService) RequestPermit(ctx context.Context, subject Subject, birthdate time.Time, parentEmail string) error {
	now := s.now()
	if !domain.PermitRequired(birthdate, now) {
		return apperrors.NewBadRequest(apperrors.CodeNoPermitRequired)
	}

	code, err := permitCode()
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	permit := &domain.BirthdatePermit{
		Subject:     subject.Key(),
		Birthdate:   birthdate,
		Code:        code,
		ParentEmail: parentEmail,
		CreatedAt:   now,
	}
	if err := s.permits.Put(ctx, permit, s.permitTTL); err != nil {
		return apperrors.NewInternalError(err)
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPermitRequested,
		Subject:   subject.Key(),
		Timestamp: now,
		Payload: events.PermitRequestedPayload{
			ParentEmail: parentEmail,
			Code:        code,
			Birthdate:   birthdate,
		},
	})

	s.logger.Info("birthdate permit requested", zap.String("subject", subject.Key()))
	return nil
}

// ValidatePermit checks the age gate for a birthdate claim. Adults pass
// trivially; minors need a matching, unexpired permit, which is consumed on
// success. The returned permit carries the approving parent email.
func (s *BirthdateService) ValidatePermit(ctx context.Context, subjectKey string, birthdate time.Time, code string) (*domain.BirthdatePermit, error) {
	return s.checkPermit(ctx, subjectKey, birthdate, code, true)
}

// CheckPermit runs the same checks without consuming the permit, so a
// client can verify a code before the write that will redeem it.
func (s *BirthdateService) CheckPermit(ctx context.Context, subjectKey string, birthdate time.Time, code string) (*domain.BirthdatePermit, error) {
	return s.checkPermit(ctx, subjectKey, birthdate, code, false)
}

func (s *BirthdateService) checkPermit(ctx context.Context, subjectKey string, birthdate time.Time, code string, consume bool) (*domain.BirthdatePermit, error) {
	now := s.now()
	if !domain.PermitRequired(birthdate, now) {
		return nil, nil
	}
	if code == "" {
		return nil, apperrors.NewBadRequest(apperrors.CodePermitRequired)
	}

	lookup := s.permits.Peek
	if consume {
		lookup = s.permits.Consume
	}
	permit, err := lookup(ctx, subjectKey, birthdate, code, s.permitTTL)
	if err != nil {
		if err == repository.ErrPermitExpired {
			return nil, apperrors.NewBadRequest(apperrors.CodePermitExpired)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if permit == nil {
		return nil, apperrors.NewBadRequest(apperrors.CodePermitInvalid)
	}
	return permit, nil
}

func permitCode() (string, error) {
	code := make([]byte, permitCodeLength)
	max := big.NewInt(int64(len(permitCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = permitCodeCharset[n.Int64()]
	}
	return string(code), nil
}
