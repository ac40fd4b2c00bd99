// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
)

var _ ServiceInterface = (*Service)(nil)

// Claims is the signed payload of every token the service hands out.
type Claims struct {
	Purpose types.TokenPurpose `json:"purpose"`

	jwt.RegisteredClaims
}

type Service struct {
	storage StorageInterface

	secret []byte
	issuer string
	ttls   map[types.TokenPurpose]time.Duration
	now    func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Issue signs a token for subject. Single-use purposes are also recorded so
// they can be claimed exactly once. A non positive ttl selects the configured
// lifetime for the purpose.
func (s *Service) Issue(ctx context.Context, subject string, purpose types.TokenPurpose, ttl time.Duration, payload string) (*types.Token, error) {
	ctx, span := s.tracer.Start(ctx, "tokens.Service.Issue")
	defer span.End()

	if subject == "" {
		return nil, fmt.Errorf("token subject is required: %w", types.ErrInvalid)
	}

	if ttl <= 0 {
		ttl = s.ttls[purpose]
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("no lifetime configured for purpose %q: %w", purpose, types.ErrInvalid)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if purpose.SingleUse() {
		record := &types.TokenRecord{
			ID:        id.String(),
			UserID:    subject,
			Purpose:   purpose,
			Payload:   payload,
			ExpiresAt: expiresAt,
		}
		if err := s.storage.CreateToken(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store token: %w", err)
		}
	}

	return &types.Token{
		Value:     signed,
		ID:        id.String(),
		Subject:   subject,
		Purpose:   purpose,
		Payload:   payload,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate checks signature, purpose and expiry in that order, then the
// server side state for single-use purposes. Nothing is trusted from the
// payload before the signature is verified.
func (s *Service) Validate(ctx context.Context, raw string, purpose types.TokenPurpose) (*types.Token, error) {
	ctx, span := s.tracer.Start(ctx, "tokens.Service.Validate")
	defer span.End()

	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("expected %s token, got %s: %w", purpose, claims.Purpose, types.ErrWrongPurpose)
	}

	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("token expired at %s: %w", claims.ExpiresAt.Time.Format(time.RFC3339), types.ErrExpired)
	}

	token := &types.Token{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Purpose:   claims.Purpose,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if !purpose.SingleUse() {
		return token, nil
	}

	record, err := s.storage.GetToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("token is not on record: %w", types.ErrInvalid)
		}
		return nil, err
	}

	if record.UserID != claims.Subject || record.Purpose != claims.Purpose {
		return nil, fmt.Errorf("token does not match its record: %w", types.ErrInvalid)
	}

	if record.ConsumedAt != nil {
		return nil, fmt.Errorf("token consumed at %s: %w", record.ConsumedAt.Format(time.RFC3339), types.ErrAlreadyUsed)
	}

	token.Payload = record.Payload

	return token, nil
}

// Consume validates a single-use token and claims it. Of concurrent
// consumers exactly one succeeds, the others get ErrAlreadyUsed.
func (s *Service) Consume(ctx context.Context, raw string, purpose types.TokenPurpose) (*types.Token, error) {
	ctx, span := s.tracer.Start(ctx, "tokens.Service.Consume")
	defer span.End()

	if !purpose.SingleUse() {
		return nil, fmt.Errorf("%s tokens cannot be consumed: %w", purpose, types.ErrWrongPurpose)
	}

	token, err := s.Validate(ctx, raw, purpose)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyUsed) {
			s.logger.Security().AuthnTokenReuse(s.subjectOf(raw), logging.WithContext("purpose", string(purpose)))
		}
		return nil, err
	}

	claimed, err := s.storage.ClaimToken(ctx, token.ID, s.now())
	if err != nil {
		return nil, err
	}

	if !claimed {
		s.logger.Security().AuthnTokenReuse(token.Subject, logging.WithContext("purpose", string(purpose)))
		return nil, fmt.Errorf("token already claimed: %w", types.ErrAlreadyUsed)
	}

	return token, nil
}

// RevokeAll claims every outstanding token of purpose for the user
func (s *Service) RevokeAll(ctx context.Context, userID string, purpose types.TokenPurpose) error {
	ctx, span := s.tracer.Start(ctx, "tokens.Service.RevokeAll")
	defer span.End()

	revoked, err := s.storage.RevokeUserTokens(ctx, userID, purpose, s.now())
	if err != nil {
		return err
	}

	s.logger.Debugf("revoked %d %s tokens for user %s", revoked, purpose, userID)

	return nil
}

// PurgeExpired deletes token records past their expiry
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "tokens.Service.PurgeExpired")
	defer span.End()

	return s.storage.DeleteExpiredTokens(ctx, s.now())
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := new(Claims)

	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		// expiry is checked against the service clock after the purpose
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %v: %w", err, types.ErrInvalid)
	}

	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil || claims.Issuer != s.issuer {
		return nil, fmt.Errorf("token is missing required claims: %w", types.ErrInvalid)
	}

	return claims, nil
}

// subjectOf reads the subject of an already verified token for audit logs
func (s *Service) subjectOf(raw string) string {
	claims, err := s.parse(raw)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// WithClock replaces the time source, used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NewService(storage StorageInterface, cfg *Config, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Service {
	s := new(Service)

	s.storage = storage
	s.secret = cfg.Secret
	s.issuer = cfg.Issuer
	s.ttls = cfg.TTLs
	s.now = time.Now

	s.tracer = tracer
	s.monitor = monitor
	s.logger = logger

	return s
}
