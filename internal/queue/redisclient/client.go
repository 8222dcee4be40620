package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// this ping function checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

// this closes the client

func (c *Client) Close() error {
	return c.redisdb.Close()
}

//  this exposes the redis client for ad-hoc use (caching in handlers)

func (c *Client) Raw() *redis.Client {
	return c.redisdb
}

const wakeKey = "deliveries:wake"

// WakeDeliveries nudges the delivery worker after new messages are queued.
// Best effort: the worker also polls, so a lost wake only costs latency.

func (c *Client) WakeDeliveries(ctx context.Context) error {
	return c.redisdb.LPush(ctx, wakeKey, "1").Err()
}

// WaitForWake blocks up to timeout for a wake signal. redis.Nil means the
// timeout elapsed without a signal.

func (c *Client) WaitForWake(ctx context.Context, timeout time.Duration) error {
	err := c.redisdb.BRPop(ctx, timeout, wakeKey).Err()

	if err == redis.Nil {
		return nil
	}
	return err
}
