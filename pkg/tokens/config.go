// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tokens

import (
	"time"

	"github.com/canonical/teams-service/internal/types"
)

type Config struct {
	Secret []byte
	Issuer string
	TTLs   map[types.TokenPurpose]time.Duration
}

func NewConfig(secret, issuer string, access, refresh, verify, reset, emailChange time.Duration) *Config {
	c := new(Config)

	c.Secret = []byte(secret)
	c.Issuer = issuer
	c.TTLs = map[types.TokenPurpose]time.Duration{
		types.PurposeAccess:      access,
		types.PurposeRefresh:     refresh,
		types.PurposeVerify:      verify,
		types.PurposeReset:       reset,
		types.PurposeEmailChange: emailChange,
	}

	return c
}
