// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmdtree/cmdtree/pkg/cmddoc"

	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the hash holding documents, field = document id.
	DefaultRedisKey = "cmdtree:documents"
	// DefaultRedisChannel announces document changes.
	DefaultRedisChannel = "cmdtree:reload"
)

// ErrNoRedisClient is returned when NewRedis gets a nil client.
var ErrNoRedisClient = errors.New("redis source: client is nil")

type (
	// Redis loads documents from a Redis hash. Writers update the hash and
	// publish the changed document id on a channel; Subscribe turns those
	// messages into reload triggers.
	Redis struct {
		client  *backend.Client
		key     string
		channel string
	}

	// RedisOption configures a Redis source.
	RedisOption func(*Redis)
)

// WithKey sets the hash key.
func WithKey(key string) RedisOption {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) RedisOption {
	return func(r *Redis) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// NewRedis creates a Redis source from an existing client.
func NewRedis(client *backend.Client, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, ErrNoRedisClient
	}
	r := &Redis{client: client, key: DefaultRedisKey, channel: DefaultRedisChannel}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, opts ...RedisOption) (*Redis, error) {
	client := backend.NewClient(&backend.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, opts...)
}

// Name implements live.Source.
func (r *Redis) Name() string { return "redis:" + r.key }

// Key returns the hash key.
func (r *Redis) Key() string { return r.key }

// Channel returns the pub/sub channel.
func (r *Redis) Channel() string { return r.channel }

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// Load implements live.Source by reading the whole hash in one command, so a
// batch is always a consistent view of the hash.
func (r *Redis) Load(ctx context.Context) ([]cmddoc.Input, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", r.key, err)
	}
	inputs := make([]cmddoc.Input, 0, len(fields))
	for id, data := range fields {
		inputs = append(inputs, cmddoc.Input{ID: id, Data: []byte(data)})
	}
	sortInputs(inputs)
	return inputs, nil
}

// Put stores a document and announces it.
func (r *Redis) Put(ctx context.Context, id string, data []byte) error {
	if err := r.client.HSet(ctx, r.key, id, data).Err(); err != nil {
		return fmt.Errorf("redis put %s: %w", id, err)
	}
	if err := r.client.Publish(ctx, r.channel, id).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", id, err)
	}
	return nil
}

// Delete removes a document and announces it.
func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	if err := r.client.Publish(ctx, r.channel, id).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", id, err)
	}
	return nil
}

// Subscribe returns a channel of changed document ids. The subscription is
// confirmed before Subscribe returns, so no later announcement is missed.
// The channel closes when ctx ends.
func (r *Redis) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis SUBSCRIBE %s: %w", r.channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
