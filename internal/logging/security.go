// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package logging

import (
	"fmt"

	"go.uber.org/zap"
)

const appID = "teams-service"

type eventLevel string

const (
	levelInfo     eventLevel = "INFO"
	levelWarn     eventLevel = "WARN"
	levelCritical eventLevel = "CRITICAL"
)

type event struct {
	fields []zap.Field
}

// Option adds context to a security event.
type Option func(*event)

func WithRequest(ip, userAgent string) Option {
	return func(e *event) {
		e.fields = append(e.fields, zap.String("source_ip", ip), zap.String("user_agent", userAgent))
	}
}

func WithContext(key, value string) Option {
	return func(e *event) {
		e.fields = append(e.fields, zap.String(key, value))
	}
}

type SecurityLogger struct {
	l *zap.Logger
}

func (s *SecurityLogger) emit(name string, level eventLevel, description string, opts ...Option) {
	e := new(event)
	e.fields = []zap.Field{
		zap.String("appid", appID),
		zap.String("event", name),
		zap.String("level", string(level)),
		zap.String("description", description),
		zap.String("type", "security"),
	}

	for _, opt := range opts {
		opt(e)
	}

	switch level {
	case levelCritical:
		s.l.Error(description, e.fields...)
	case levelWarn:
		s.l.Warn(description, e.fields...)
	default:
		s.l.Info(description, e.fields...)
	}
}

func (s *SecurityLogger) SystemStartup(opts ...Option) {
	s.emit("sys_startup", levelWarn, "system started", opts...)
}

func (s *SecurityLogger) SystemShutdown(opts ...Option) {
	s.emit("sys_shutdown", levelWarn, "system shut down", opts...)
}

func (s *SecurityLogger) AuthnLoginSuccess(user string, opts ...Option) {
	s.emit(fmt.Sprintf("authn_login_success:%s", user), levelInfo, fmt.Sprintf("user %s login successfully", user), opts...)
}

func (s *SecurityLogger) AuthnLoginFailure(user string, opts ...Option) {
	s.emit(fmt.Sprintf("authn_login_fail:%s", user), levelWarn, fmt.Sprintf("user %s login failed", user), opts...)
}

func (s *SecurityLogger) AuthnTokenReuse(user string, opts ...Option) {
	s.emit(fmt.Sprintf("authn_token_reuse:%s", user), levelCritical, fmt.Sprintf("user %s attempted to reuse a consumed token", user), opts...)
}

func (s *SecurityLogger) AuthzFailure(user, resource string, opts ...Option) {
	s.emit(fmt.Sprintf("authz_fail:%s,%s", user, resource), levelCritical, fmt.Sprintf("user %s attempted to access %s without entitlement", user, resource), opts...)
}

func (s *SecurityLogger) UserCreated(user string, opts ...Option) {
	s.emit(fmt.Sprintf("user_created:%s", user), levelWarn, fmt.Sprintf("user %s created", user), opts...)
}

func (s *SecurityLogger) PasswordChanged(user string, opts ...Option) {
	s.emit(fmt.Sprintf("authn_password_change:%s", user), levelInfo, fmt.Sprintf("user %s changed password", user), opts...)
}

func (s *SecurityLogger) EmailChanged(user string, opts ...Option) {
	s.emit(fmt.Sprintf("user_updated:%s,email", user), levelInfo, fmt.Sprintf("user %s changed email", user), opts...)
}

func newSecurityLogger(l *zap.Logger) *SecurityLogger {
	return &SecurityLogger{l: l}
}
