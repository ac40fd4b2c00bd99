// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package logging

type LoggerInterface interface {
	Errorf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Debugf(string, ...interface{})
	Fatalf(string, ...interface{})
	Error(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Debug(...interface{})
	Fatal(...interface{})
	Security() SecurityLoggerInterface
	Sync() error
}

// SecurityLoggerInterface emits events following the OWASP logging vocabulary.
type SecurityLoggerInterface interface {
	SystemStartup(...Option)
	SystemShutdown(...Option)
	AuthnLoginSuccess(string, ...Option)
	AuthnLoginFailure(string, ...Option)
	AuthnTokenReuse(string, ...Option)
	AuthzFailure(string, string, ...Option)
	UserCreated(string, ...Option)
	PasswordChanged(string, ...Option)
	EmailChanged(string, ...Option)
}
