// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package password

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/canonical/teams-service/internal/tracing"
)

// bcrypt silently ignores input past 72 bytes
const MaxLength = 72

var ErrTooLong = errors.New("password exceeds 72 bytes")

type HasherInterface interface {
	Hash(context.Context, string) (string, error)
	Compare(context.Context, string, string) bool
}

type Hasher struct {
	cost int

	tracer tracing.TracingInterface
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	_, span := h.tracer.Start(ctx, "password.Hasher.Hash")
	defer span.End()

	if len(plain) > MaxLength {
		return "", ErrTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Compare runs in constant time with respect to the stored hash
func (h *Hasher) Compare(ctx context.Context, hash, plain string) bool {
	_, span := h.tracer.Start(ctx, "password.Hasher.Compare")
	defer span.End()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewHasher returns a bcrypt hasher, a cost outside bcrypt bounds selects the default
func NewHasher(cost int, tracer tracing.TracingInterface) *Hasher {
	h := new(Hasher)

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h.cost = cost
	h.tracer = tracer

	return h
}
