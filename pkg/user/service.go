// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
	"github.com/canonical/teams-service/internal/password"
	"github.com/canonical/teams-service/internal/storage"
	"github.com/canonical/teams-service/internal/tracing"
	"github.com/canonical/teams-service/internal/types"
	"github.com/canonical/teams-service/pkg/notification"
	"github.com/canonical/teams-service/pkg/tokens"
)

const tokenTypeBearer = "bearer"

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage    StorageInterface
	tx         TxInterface
	tokens     tokens.ServiceInterface
	hasher     password.HasherInterface
	dispatcher notification.DispatcherInterface

	// compared against when the login identifier is unknown
	dummyHash     string
	dummyHashOnce sync.Once

	now func() time.Time

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Register creates an unverified user together with its verification token,
// the verification notification is only dispatched once both are committed
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.Register")
	defer span.End()

	hash, err := s.hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	var (
		created *types.User
		verify  *types.Token
	)

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.storage.CreateUser(ctx, &types.User{
			Login:        strings.TrimSpace(req.Login),
			Email:        normalizeEmail(req.Email),
			PasswordHash: hash,
			Status:       types.UserStatusUnverified,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
		})
		if err != nil {
			return err
		}

		token, err := s.tokens.Issue(ctx, u.ID, types.PurposeVerify, 0, "")
		if err != nil {
			return err
		}

		created, verify = u, token
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}

	s.dispatcher.Send(ctx, types.NotificationVerify, created.Email, verify.Value, nil)
	s.logger.Security().UserCreated(created.ID)

	return created, nil
}

// Login authenticates by login or email. Unknown identifiers and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identifier, plain, ip string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.Login")
	defer span.End()

	identifier = strings.TrimSpace(identifier)

	u, err := s.storage.GetUserByLoginOrEmail(ctx, identifier)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if u == nil {
		s.hasher.Compare(ctx, s.fallbackHash(ctx), plain)
		s.logger.Security().AuthnLoginFailure(identifier, logging.WithRequest(ip, ""), logging.WithContext("reason", "unknown_user"))
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if !s.hasher.Compare(ctx, u.PasswordHash, plain) {
		s.logger.Security().AuthnLoginFailure(u.ID, logging.WithRequest(ip, ""), logging.WithContext("reason", "bad_password"))
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if err := s.storage.RecordLogin(ctx, u.ID, ip, s.now()); err != nil {
		s.logger.Warnf("failed to record login of user %s: %v", u.ID, err)
	}

	session, err := s.newSession(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Security().AuthnLoginSuccess(u.ID, logging.WithRequest(ip, ""))

	return session, nil
}

// Refresh rotates the refresh token, the presented one can not be used again
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.Refresh")
	defer span.End()

	var session *Session

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		token, err := s.tokens.Consume(ctx, refreshToken, types.PurposeRefresh)
		if err != nil {
			return err
		}

		if _, err := s.storage.GetUserByID(ctx, token.Subject); err != nil {
			return err
		}

		session, err = s.newSession(ctx, token.Subject)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("refresh token subject is gone: %w", types.ErrUnauthenticated)
		}
		return nil, err
	}

	return session, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "user.Service.Logout")
	defer span.End()

	_, err := s.tokens.Consume(ctx, refreshToken, types.PurposeRefresh)

	return err
}

func (s *Service) GetUser(ctx context.Context, id string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.GetUser")
	defer span.End()

	u, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		return nil, translateError(err)
	}

	return u, nil
}

// UpdateSettings applies login, name and password changes directly. An email
// change only issues a confirmation token addressed to the new email.
func (s *Service) UpdateSettings(ctx context.Context, user *types.User, req *SettingsRequest) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.UpdateSettings")
	defer span.End()

	settings := types.UserSettings{
		FirstName: trimmed(req.FirstName),
		LastName:  trimmed(req.LastName),
	}

	if login := trimmed(req.Login); login != nil && *login != user.Login {
		settings.Login = login
	}

	if req.Password != nil {
		if req.CurrentPassword == nil || !s.hasher.Compare(ctx, user.PasswordHash, *req.CurrentPassword) {
			s.logger.Security().AuthnLoginFailure(user.ID, logging.WithContext("reason", "password_change_rejected"))
			return nil, fmt.Errorf("current password does not match: %w", types.ErrForbidden)
		}

		hash, err := s.hash(ctx, *req.Password)
		if err != nil {
			return nil, err
		}
		settings.PasswordHash = &hash
	}

	var newEmail string
	if req.Email != nil {
		if email := normalizeEmail(*req.Email); email != normalizeEmail(user.Email) {
			newEmail = email
		}
	}

	if newEmail != "" {
		taken, err := s.storage.GetUserByEmail(ctx, newEmail)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if taken != nil {
			return nil, fmt.Errorf("email is already registered: %w", types.ErrConflict)
		}
	}

	var (
		updated *types.User
		change  *types.Token
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.storage.UpdateUserSettings(ctx, user.ID, settings)
		if err != nil {
			return err
		}
		updated = u

		if newEmail == "" {
			return nil
		}

		change, err = s.tokens.Issue(ctx, user.ID, types.PurposeEmailChange, 0, newEmail)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}

	if settings.PasswordHash != nil {
		if err := s.tokens.RevokeAll(ctx, user.ID, types.PurposeRefresh); err != nil {
			s.logger.Errorf("failed to revoke sessions of user %s: %v", user.ID, err)
		}
		s.logger.Security().PasswordChanged(user.ID)
	}

	if change != nil {
		s.dispatcher.Send(ctx, types.NotificationEmailChange, newEmail, change.Value, nil)
	}

	return updated, nil
}

// ConfirmEmailChange applies the email carried by the token and marks the
// account verified, the address just proved it receives mail
func (s *Service) ConfirmEmailChange(ctx context.Context, raw string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.ConfirmEmailChange")
	defer span.End()

	var updated *types.User

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		token, err := s.tokens.Consume(ctx, raw, types.PurposeEmailChange)
		if err != nil {
			return err
		}

		if token.Payload == "" {
			return fmt.Errorf("email change token carries no address: %w", types.ErrInvalid)
		}

		if err := s.storage.UpdateUserEmail(ctx, token.Subject, token.Payload); err != nil {
			return err
		}

		updated, err = s.storage.GetUserByID(ctx, token.Subject)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}

	s.logger.Security().EmailChanged(updated.ID)

	return updated, nil
}

func (s *Service) UpdateAppearance(ctx context.Context, userID string, appearance types.Appearance) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "user.Service.UpdateAppearance")
	defer span.End()

	appearance.MainColorHex = strings.ToLower(appearance.MainColorHex)

	if err := s.storage.UpdateAppearance(ctx, userID, appearance); err != nil {
		return nil, translateError(err)
	}

	return s.GetUser(ctx, userID)
}

func (s *Service) SendVerification(ctx context.Context, user *types.User) error {
	ctx, span := s.tracer.Start(ctx, "user.Service.SendVerification")
	defer span.End()

	if user.Verified() {
		return fmt.Errorf("user %s is already verified: %w", user.ID, types.ErrInvalidState)
	}

	token, err := s.tokens.Issue(ctx, user.ID, types.PurposeVerify, 0, "")
	if err != nil {
		return err
	}

	s.dispatcher.Send(ctx, types.NotificationVerify, user.Email, token.Value, nil)

	return nil
}

// Verify consumes a verification token, a replayed token fails with
// ErrAlreadyUsed and leaves the user untouched
func (s *Service) Verify(ctx context.Context, raw string) error {
	ctx, span := s.tracer.Start(ctx, "user.Service.Verify")
	defer span.End()

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		token, err := s.tokens.Consume(ctx, raw, types.PurposeVerify)
		if err != nil {
			return err
		}

		return s.storage.SetUserStatus(ctx, token.Subject, types.UserStatusVerified)
	})

	return translateError(err)
}

// SendPasswordReset does not reveal whether the email is registered
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "user.Service.SendPasswordReset")
	defer span.End()

	u, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debugf("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.tokens.Issue(ctx, u.ID, types.PurposeReset, 0, "")
	if err != nil {
		return err
	}

	s.dispatcher.Send(ctx, types.NotificationReset, u.Email, token.Value, nil)

	return nil
}

// ResetPassword sets a new password and ends every open session of the user
func (s *Service) ResetPassword(ctx context.Context, raw, plain string) error {
	ctx, span := s.tracer.Start(ctx, "user.Service.ResetPassword")
	defer span.End()

	hash, err := s.hash(ctx, plain)
	if err != nil {
		return err
	}

	var userID string

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		token, err := s.tokens.Consume(ctx, raw, types.PurposeReset)
		if err != nil {
			return err
		}
		userID = token.Subject

		if _, err := s.storage.UpdateUserSettings(ctx, userID, types.UserSettings{PasswordHash: &hash}); err != nil {
			return err
		}

		return s.tokens.RevokeAll(ctx, userID, types.PurposeRefresh)
	})
	if err != nil {
		return translateError(err)
	}

	s.logger.Security().PasswordChanged(userID)

	return nil
}

func (s *Service) newSession(ctx context.Context, userID string) (*Session, error) {
	access, err := s.tokens.Issue(ctx, userID, types.PurposeAccess, 0, "")
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.Issue(ctx, userID, types.PurposeRefresh, 0, "")
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		TokenType:        tokenTypeBearer,
		ExpiresAt:        access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *Service) hash(ctx context.Context, plain string) (string, error) {
	hash, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%v: %w", err, types.ErrInvalid)
		}
		return "", err
	}
	return hash, nil
}

func (s *Service) fallbackHash(ctx context.Context) string {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash(ctx, "teams-service-unknown-user")
		if err != nil {
			s.logger.Errorf("failed to prepare fallback hash: %v", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// translateError maps storage sentinels to domain errors, everything else is
// passed through unchanged
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("user not found: %w", types.ErrNotFound)
	case errors.Is(err, storage.ErrDuplicateKey):
		return fmt.Errorf("%s is already taken: %w", takenField(err), types.ErrConflict)
	}
	return err
}

func takenField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users_email_key"):
		return "email"
	case strings.Contains(msg, "users_login_key"):
		return "login"
	}
	return "value"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NewService(
	storage StorageInterface,
	tx TxInterface,
	tokens tokens.ServiceInterface,
	hasher password.HasherInterface,
	dispatcher notification.DispatcherInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	s := new(Service)

	s.storage = storage
	s.tx = tx
	s.tokens = tokens
	s.hasher = hasher
	s.dispatcher = dispatcher
	s.now = time.Now

	s.tracer = tracer
	s.monitor = monitor
	s.logger = logger

	return s
}
