// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/canonical/teams-service/internal/logging"
)

const connectTimeout = 5 * time.Second

// Client owns the redis connection pool shared by the rate limiter and the
// notification queue
type Client struct {
	rdb *redis.Client

	logger logging.LoggerInterface
}

func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() {
	if err := c.rdb.Close(); err != nil {
		c.logger.Errorf("failed to close redis client: %v", err)
	}
}

// ParseOptions validates a redis:// or rediss:// URL
func ParseOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return opts, nil
}

func NewClient(url string, logger logging.LoggerInterface) (*Client, error) {
	opts, err := ParseOptions(url)
	if err != nil {
		return nil, err
	}

	c := new(Client)
	c.rdb = redis.NewClient(opts)
	c.logger = logger

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Debugf("connected to redis at %s db %d", opts.Addr, opts.DB)

	return c, nil
}
