// Package natskv adapts a NATS JetStream key-value bucket to the
// kvstore.Engine interface. Each engine instance maps to its own bucket.
//
// JetStream KV restricts key characters; keys containing the kvstore
// namespace separator ':' are rejected by the server, so deployments using
// this backend should address partitions through instance IDs rather than
// namespaces.
package natskv

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
)

const defaultBucket = "signalkv_default"

// Options configures bucket creation and operation behavior.
type Options struct {
	// BucketPrefix is prepended to instance IDs to form bucket names.
	BucketPrefix string
	// Timeout bounds individual KV operations. Zero disables the bound.
	Timeout time.Duration
	// History is the number of revisions kept per key.
	History uint8
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		BucketPrefix: "signalkv_",
		Timeout:      5 * time.Second,
		History:      1,
	}
}

// Engine is a JetStream KV-backed kvstore.Engine.
type Engine struct {
	bucket  jetstream.KeyValue
	options Options
}

var _ kvstore.Engine = (*Engine)(nil)

// New wraps an existing JetStream KV bucket.
func New(bucket jetstream.KeyValue, options Options) *Engine {
	return &Engine{bucket: bucket, options: options}
}

// Opener returns a kvstore.Opener that creates (or reuses) one bucket per
// instance on the given connection.
func Opener(nc *nats.Conn, options Options) kvstore.Opener {
	return func(instanceID string) (kvstore.Engine, error) {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, errors.WrapTransient(err, "natskv", "Opener", "create jetstream context")
		}

		name := defaultBucket
		if instanceID != "" {
			name = options.BucketPrefix + instanceID
		}

		ctx := context.Background()
		if options.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, options.Timeout)
			defer cancel()
		}

		bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  name,
			History: options.History,
		})
		if err != nil {
			return nil, errors.WrapTransient(err, "natskv", "Opener", "create bucket")
		}
		return New(bucket, options), nil
	}
}

// applyTimeout applies the configured timeout to the context if set.
func (e *Engine) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.options.Timeout > 0 {
		return context.WithTimeout(ctx, e.options.Timeout)
	}
	return ctx, func() {}
}

// isNotFound checks for the bucket's key-not-found condition, including raw
// server error strings that predate typed errors.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrNoKeysFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

func (e *Engine) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := e.applyTimeout(ctx)
	defer cancel()

	if _, err := e.bucket.Put(ctx, key, value); err != nil {
		return errors.WrapTransient(err, "natskv", "Set", "kv put")
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := e.applyTimeout(ctx)
	defer cancel()

	entry, err := e.bucket.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "natskv", "Get", "kv get")
	}
	return entry.Value(), nil
}

func (e *Engine) Delete(ctx context.Context, key string) error {
	ctx, cancel := e.applyTimeout(ctx)
	defer cancel()

	// Purge rather than Delete so removed keys drop out of enumeration
	// instead of leaving tombstone revisions.
	if err := e.bucket.Purge(ctx, key); err != nil {
		if isNotFound(err) {
			return nil
		}
		return errors.WrapTransient(err, "natskv", "Delete", "kv purge")
	}
	return nil
}

func (e *Engine) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := e.applyTimeout(ctx)
	defer cancel()

	keys, err := e.bucket.Keys(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "natskv", "Keys", "kv keys")
	}
	return keys, nil
}

func (e *Engine) Contains(ctx context.Context, key string) (bool, error) {
	_, err := e.Get(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *Engine) Count(ctx context.Context) (int, error) {
	keys, err := e.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (e *Engine) TotalSize(ctx context.Context) (int64, error) {
	ctx, cancel := e.applyTimeout(ctx)
	defer cancel()

	status, err := e.bucket.Status(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "natskv", "TotalSize", "bucket status")
	}
	return int64(status.Bytes()), nil
}

func (e *Engine) Clear(ctx context.Context) error {
	keys, err := e.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := e.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; bucket lifetime is owned by the NATS connection.
func (e *Engine) Close() error {
	return nil
}
