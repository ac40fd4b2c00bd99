// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import "errors"

// Domain errors, translated to stable client codes at the http boundary.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalid         = errors.New("invalid")
	ErrExpired         = errors.New("expired")
	ErrAlreadyUsed     = errors.New("already used")
	ErrWrongPurpose    = errors.New("wrong token purpose")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
)
