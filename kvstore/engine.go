package kvstore

import (
	"context"
)

// Log levels used on the engine boundary. Lower values are less verbose;
// an engine event is forwarded only when its level is at or below the
// configured threshold.
const (
	LevelOff = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelVerbose
)

// EventSink receives diagnostic events from the storage boundary. The sink
// is invoked synchronously from whatever goroutine the engine reports on;
// implementations must not block.
type EventSink func(level int, message string, instanceID string)

// Engine is a single key-value storage instance. Engines are namespace-unaware
// and key-addressed by raw strings; all namespace handling happens in Client.
//
// Get returns errors.ErrKeyNotFound (possibly wrapped) when the key is absent.
type Engine interface {
	// Set stores value under key, creating or overwriting.
	Set(ctx context.Context, key string, value []byte) error

	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys enumerates every key in the instance.
	Keys(ctx context.Context) ([]string, error)

	// Contains reports whether key is present.
	Contains(ctx context.Context, key string) (bool, error)

	// Count returns the number of keys in the instance.
	Count(ctx context.Context) (int, error)

	// TotalSize returns the approximate storage footprint in bytes.
	TotalSize(ctx context.Context) (int64, error)

	// Clear removes every key in the instance.
	Clear(ctx context.Context) error

	// Close releases the instance's resources.
	Close() error
}

// Opener creates an Engine for the given instance ID. An empty instance ID
// requests the default instance. Openers are called lazily, at most once per
// distinct instance ID per Client.
type Opener func(instanceID string) (Engine, error)

// EventReporter is implemented by engines that surface backend diagnostics
// (compactions, background errors, recovery) as log events.
type EventReporter interface {
	SetEventSink(sink EventSink)
}
