// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/canonical/teams-service/internal/logging"
	domain "github.com/canonical/teams-service/internal/types"
)

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", fmt.Errorf("not a member: %w", domain.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"invalid", domain.ErrInvalid, http.StatusBadRequest, "invalid"},
		{"wrong purpose", domain.ErrWrongPurpose, http.StatusBadRequest, "wrong_purpose"},
		{"expired", domain.ErrExpired, http.StatusGone, "expired"},
		{"already used", domain.ErrAlreadyUsed, http.StatusConflict, "already_used"},
		{"invalid state", domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{"conflict", domain.ErrConflict, http.StatusConflict, "conflict"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ErrorFor(tt.err)

			if resp.Status != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, resp.Status)
			}
			if resp.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, resp.Code)
			}
		})
	}
}

func TestWriteError_HidesInternals(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, errors.New("dial tcp 10.0.0.3:5432: connection refused"), logging.NewNoopLogger())

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.3") {
		t.Errorf("internal error details leaked: %s", w.Body.String())
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "internal" {
		t.Errorf("expected internal code, got %s", resp.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusCreated, map[string]string{"id": "1"}, logging.NewNoopLogger())

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected status field 201, got %d", resp.Status)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{name: "valid", body: `{"name":"a"}`},
		{name: "malformed", body: `{"name":`, expectedErr: domain.ErrInvalid},
		{name: "unknown field", body: `{"name":"a","admin":true}`, expectedErr: domain.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := DecodeJSON(r, &p)

			if tt.expectedErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}
