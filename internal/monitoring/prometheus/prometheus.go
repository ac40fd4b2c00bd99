// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package prometheus

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/teams-service/internal/logging"
	"github.com/canonical/teams-service/internal/monitoring"
)

var _ monitoring.MonitorInterface = (*Monitor)(nil)

type Monitor struct {
	service string

	responseTime           *prometheus.HistogramVec
	dependencyAvailability *prometheus.GaugeVec
	notificationDelivery   *prometheus.CounterVec

	logger logging.LoggerInterface
}

func (m *Monitor) GetService() string {
	return m.service
}

func (m *Monitor) SetResponseTimeMetric(tags map[string]string, value float64) error {
	if m.responseTime == nil {
		return fmt.Errorf("metric not instantiated")
	}

	m.responseTime.With(tags).Observe(value)

	return nil
}

func (m *Monitor) SetDependencyAvailability(tags map[string]string, value float64) error {
	if m.dependencyAvailability == nil {
		return fmt.Errorf("metric not instantiated")
	}

	m.dependencyAvailability.With(tags).Set(value)

	return nil
}

func (m *Monitor) AddNotificationDelivery(tags map[string]string, value float64) error {
	if m.notificationDelivery == nil {
		return fmt.Errorf("metric not instantiated")
	}

	m.notificationDelivery.With(tags).Add(value)

	return nil
}

func (m *Monitor) registerHistograms() {
	responseTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_response_time_seconds",
			Help:        "http_response_time_seconds",
			ConstLabels: prometheus.Labels{"service": m.service},
		},
		[]string{"route", "status"},
	)

	m.responseTime = m.register(responseTime).(*prometheus.HistogramVec)
}

func (m *Monitor) registerGauges() {
	dependencyAvailability := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "dependency_available",
			Help:        "dependency_available",
			ConstLabels: prometheus.Labels{"service": m.service},
		},
		[]string{"component"},
	)

	m.dependencyAvailability = m.register(dependencyAvailability).(*prometheus.GaugeVec)
}

func (m *Monitor) registerCounters() {
	notificationDelivery := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "notification_deliveries_total",
			Help:        "notification_deliveries_total",
			ConstLabels: prometheus.Labels{"service": m.service},
		},
		[]string{"kind", "outcome"},
	)

	m.notificationDelivery = m.register(notificationDelivery).(*prometheus.CounterVec)
}

// register reuses the existing collector when one with the same descriptor is
// already registered, monitors are built once per command
func (m *Monitor) register(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		m.logger.Errorf("failed to register collector: %v", err)
	}

	return c
}

// NewMonitor creates a new monitor object, metrics are registered against the default registry
func NewMonitor(service string, logger logging.LoggerInterface) *Monitor {
	m := new(Monitor)

	m.service = service
	m.logger = logger

	m.registerHistograms()
	m.registerGauges()
	m.registerCounters()

	return m
}
