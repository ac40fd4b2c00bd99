// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/canonical/teams-service/internal/types"
)

var userColumns = []string{
	"id", "login", "email", "password_hash", "status", "is_superuser",
	"first_name", "last_name", "theme_is_light", "main_color_hex",
	"last_login_ip", "last_login_at", "created_at", "updated_at",
}

func scanUser(row scanner) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID, &u.Login, &u.Email, &u.PasswordHash, &u.Status, &u.IsSuperuser,
		&u.FirstName, &u.LastName, &u.ThemeIsLight, &u.MainColorHex,
		&u.LastLoginIP, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, u *types.User) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateUser")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}

	row := s.db.Statement(ctx).
		Insert("users").
		Columns("id", "login", "email", "password_hash", "status", "first_name", "last_name").
		Values(id.String(), u.Login, strings.ToLower(u.Email), u.PasswordHash, u.Status, u.FirstName, u.LastName).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		QueryRowContext(ctx)

	created, err := scanUser(row)
	if err != nil {
		return nil, wrapWriteError(err, "insert user")
	}

	return created, nil
}

func (s *Storage) getUser(ctx context.Context, where sq.Sqlizer) (*types.User, error) {
	row := s.db.Statement(ctx).
		Select(userColumns...).
		From("users").
		Where(where).
		QueryRowContext(ctx)

	u, err := scanUser(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetUserByID")
	defer span.End()

	return s.getUser(ctx, sq.Eq{"id": id})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetUserByEmail")
	defer span.End()

	return s.getUser(ctx, sq.Expr("lower(email) = lower(?)", email))
}

// GetUserByLoginOrEmail resolves the identifier users sign in with
func (s *Storage) GetUserByLoginOrEmail(ctx context.Context, identifier string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetUserByLoginOrEmail")
	defer span.End()

	return s.getUser(ctx, sq.Or{
		sq.Eq{"login": identifier},
		sq.Expr("lower(email) = lower(?)", identifier),
	})
}

// UpdateUserSettings applies the non nil fields of settings.
func (s *Storage) UpdateUserSettings(ctx context.Context, id string, settings types.UserSettings) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateUserSettings")
	defer span.End()

	updateMap := map[string]interface{}{
		"updated_at": sq.Expr("now()"),
	}
	if settings.Login != nil {
		updateMap["login"] = *settings.Login
	}
	if settings.FirstName != nil {
		updateMap["first_name"] = *settings.FirstName
	}
	if settings.LastName != nil {
		updateMap["last_name"] = *settings.LastName
	}
	if settings.PasswordHash != nil {
		updateMap["password_hash"] = *settings.PasswordHash
	}

	row := s.db.Statement(ctx).
		Update("users").
		SetMap(updateMap).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		QueryRowContext(ctx)

	u, err := scanUser(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, wrapWriteError(err, "update user")
	}

	return u, nil
}

// UpdateUserEmail sets a confirmed email, which also verifies the account
func (s *Storage) UpdateUserEmail(ctx context.Context, id, email string) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateUserEmail")
	defer span.End()

	return s.updateUser(ctx, id, "update user email", map[string]interface{}{
		"email":  strings.ToLower(email),
		"status": types.UserStatusVerified,
	})
}

func (s *Storage) SetUserStatus(ctx context.Context, id string, status types.UserStatus) error {
	ctx, span := s.tracer.Start(ctx, "storage.SetUserStatus")
	defer span.End()

	return s.updateUser(ctx, id, "update user status", map[string]interface{}{
		"status": status,
	})
}

func (s *Storage) UpdateAppearance(ctx context.Context, id string, appearance types.Appearance) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateAppearance")
	defer span.End()

	return s.updateUser(ctx, id, "update appearance", map[string]interface{}{
		"theme_is_light": appearance.ThemeIsLight,
		"main_color_hex": appearance.MainColorHex,
	})
}

func (s *Storage) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "storage.RecordLogin")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("users").
		Set("last_login_ip", ip).
		Set("last_login_at", at).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	return requireRow(res)
}

func (s *Storage) updateUser(ctx context.Context, id, op string, updateMap map[string]interface{}) error {
	updateMap["updated_at"] = sq.Expr("now()")

	res, err := s.db.Statement(ctx).
		Update("users").
		SetMap(updateMap).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return wrapWriteError(err, op)
	}

	return requireRow(res)
}
