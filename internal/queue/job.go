// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/canonical/teams-service/internal/types"
)

// Job is one notification delivery, serialized as JSON on the wire
type Job struct {
	ID         string                 `json:"id"`
	Kind       types.NotificationKind `json:"kind"`
	Recipient  string                 `json:"recipient"`
	Token      string                 `json:"token,omitempty"`
	Data       map[string]string      `json:"data,omitempty"`
	Attempts   int                    `json:"attempts"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
	NotBefore  time.Time              `json:"not_before,omitempty"`
	LastError  string                 `json:"last_error,omitempty"`
}

func NewJob(n types.Notification, now time.Time) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}

	return &Job{
		ID:         id.String(),
		Kind:       n.Kind,
		Recipient:  n.Recipient,
		Token:      n.Token,
		Data:       n.Data,
		EnqueuedAt: now,
	}, nil
}

func (j *Job) Notification() types.Notification {
	return types.Notification{
		Kind:      j.Kind,
		Recipient: j.Recipient,
		Token:     j.Token,
		Data:      j.Data,
	}
}

func encode(j *Job) (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	return string(b), nil
}

func decode(raw string) (*Job, error) {
	j := new(Job)
	if err := json.Unmarshal([]byte(raw), j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return j, nil
}
