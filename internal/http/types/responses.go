// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/canonical/teams-service/internal/logging"
	domain "github.com/canonical/teams-service/internal/types"
)

const maxBodyBytes = 1 << 20

// Response is the envelope of every successful JSON body
type Response struct {
	Data    any         `json:"data"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Meta    *Pagination `json:"_meta,omitempty"`
}

type Pagination struct {
	Page int64 `json:"page"`
	Size int64 `json:"size"`
}

// ErrorResponse carries a stable machine readable code next to the message
type ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type mapping struct {
	err    error
	status int
	code   string
}

// checked in order, the first match wins
var mappings = []mapping{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrWrongPurpose, http.StatusBadRequest, "wrong_purpose"},
	{domain.ErrInvalid, http.StatusBadRequest, "invalid"},
	{domain.ErrExpired, http.StatusGone, "expired"},
	{domain.ErrAlreadyUsed, http.StatusConflict, "already_used"},
	{domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// ErrorFor translates a domain error, anything unknown becomes a generic 500
func ErrorFor(err error) ErrorResponse {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return ErrorResponse{Status: m.status, Code: m.code, Message: err.Error()}
		}
	}

	return ErrorResponse{
		Status:  http.StatusInternalServerError,
		Code:    "internal",
		Message: "internal server error",
	}
}

// WriteError renders err, internal errors are logged and never echoed
func WriteError(w http.ResponseWriter, err error, logger logging.LoggerInterface) {
	resp := ErrorFor(err)

	if resp.Status == http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
	} else {
		logger.Debugf("request rejected with %s: %v", resp.Code, err)
	}

	writeJSON(w, resp.Status, resp, logger)
}

func WriteJSON(w http.ResponseWriter, status int, data any, logger logging.LoggerInterface) {
	writeJSON(
		w,
		status,
		Response{
			Data:    data,
			Message: http.StatusText(status),
			Status:  status,
		},
		logger,
	)
}

func WritePage(w http.ResponseWriter, data any, page, size int64, logger logging.LoggerInterface) {
	writeJSON(
		w,
		http.StatusOK,
		Response{
			Data:    data,
			Message: http.StatusText(http.StatusOK),
			Status:  http.StatusOK,
			Meta:    &Pagination{Page: page, Size: size},
		},
		logger,
	)
}

func writeJSON(w http.ResponseWriter, status int, body any, logger logging.LoggerInterface) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("failed to encode response: %v", err)
	}
}

// DecodeJSON reads a bounded JSON body into dst, malformed input is ErrInvalid
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %v: %w", err, domain.ErrInvalid)
	}

	return nil
}
