// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/canonical/teams-service/internal/types"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NewValidator returns a validator with the custom tags used by request payloads
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		return hexColor.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})

	return v
}

// ValidationError flattens validator output into a single ErrInvalid
func ValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalid)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}

	return fmt.Errorf("%s: %w", strings.Join(fields, ", "), domain.ErrInvalid)
}
