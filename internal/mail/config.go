// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package mail

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	StartTLS  bool
	PublicURL string
}

func NewConfig(host string, port int, username, password, from string, startTLS bool, publicURL string) *Config {
	c := new(Config)

	c.Host = host
	c.Port = port
	c.Username = username
	c.Password = password
	c.From = from
	c.StartTLS = startTLS
	c.PublicURL = publicURL

	return c
}
