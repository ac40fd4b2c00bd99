// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tracing

import (
	"github.com/canonical/teams-service/internal/logging"
)

// Config selects the span exporter, gRPC endpoint wins over HTTP when both are set
type Config struct {
	ServiceName      string
	OtelHTTPEndpoint string
	OtelGRPCEndpoint string
	Logger           logging.LoggerInterface

	Enabled bool
}

func NewConfig(enabled bool, serviceName, otelGRPCEndpoint, otelHTTPEndpoint string, logger logging.LoggerInterface) *Config {
	c := new(Config)

	c.ServiceName = serviceName
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	c.OtelGRPCEndpoint = otelGRPCEndpoint
	c.OtelHTTPEndpoint = otelHTTPEndpoint
	c.Logger = logger
	c.Enabled = enabled

	return c
}

func NewNoopConfig() *Config {
	c := new(Config)
	c.ServiceName = defaultServiceName
	c.Logger = logging.NewNoopLogger()
	c.Enabled = false
	return c
}
