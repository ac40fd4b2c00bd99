// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package status

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

type Health struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

type BuildInfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}
