package kvstore

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dave-morgan/signalkv/errors"
)

// KeyOptions selects the storage partition an operation targets. The zero
// value addresses the default instance with no namespace.
type KeyOptions struct {
	// InstanceID selects the engine instance; empty means the default.
	InstanceID string
	// Namespace prefixes keys on the engine boundary. See StorageKey.
	Namespace string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for client diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client multiplexes typed key-value operations across lazily-opened engine
// instances, applying namespace prefixes above the engine boundary. A Client
// is safe for concurrent use.
type Client struct {
	opener  Opener
	engines *xsync.MapOf[string, Engine]
	openMu  sync.Mutex
	logger  *slog.Logger

	logLevel   atomic.Int32
	sinkMu     sync.RWMutex
	sinks      []sinkEntry
	nextSinkID uint64
}

type sinkEntry struct {
	id   uint64
	sink EventSink
}

// NewClient creates a Client that opens engine instances through opener.
// If opener is nil, in-memory engines are used.
func NewClient(opener Opener, opts ...ClientOption) *Client {
	if opener == nil {
		opener = MemoryOpener()
	}
	c := &Client{
		opener:  opener,
		engines: xsync.NewMapOf[string, Engine](),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// engine returns the Engine for instanceID, opening it on first use.
func (c *Client) engine(instanceID string) (Engine, error) {
	if eng, ok := c.engines.Load(instanceID); ok {
		return eng, nil
	}

	eng, opened, err := c.openEngine(instanceID)
	if err != nil {
		return nil, err
	}
	if opened {
		// Emitted outside the open lock: a listener may call back into the
		// client, and engine() must be reentrant from a sink.
		c.emit(LevelInfo, "instance opened", instanceID)
	}
	return eng, nil
}

func (c *Client) openEngine(instanceID string) (Engine, bool, error) {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	if eng, ok := c.engines.Load(instanceID); ok {
		return eng, false, nil
	}

	eng, err := c.opener(instanceID)
	if err != nil {
		return nil, false, errors.WrapTransient(err, "Client", "engine", "open instance")
	}
	if reporter, ok := eng.(EventReporter); ok {
		id := instanceID
		reporter.SetEventSink(func(level int, message string, _ string) {
			c.emit(level, message, id)
		})
	}
	c.engines.Store(instanceID, eng)
	return eng, true, nil
}

// emit forwards a boundary event to registered listeners when it passes the
// severity threshold. Listeners are invoked in registration order.
func (c *Client) emit(level int, message, instanceID string) {
	if int32(level) > c.logLevel.Load() {
		return
	}
	c.sinkMu.RLock()
	snapshot := make([]sinkEntry, len(c.sinks))
	copy(snapshot, c.sinks)
	c.sinkMu.RUnlock()
	for _, entry := range snapshot {
		entry.sink(level, message, instanceID)
	}
}

// SetLogLevel sets the severity threshold for boundary events. Levels above
// the threshold are dropped before reaching the sink.
func (c *Client) SetLogLevel(level int) {
	if level < LevelOff {
		level = LevelOff
	}
	if level > LevelVerbose {
		level = LevelVerbose
	}
	c.logLevel.Store(int32(level))
}

// LogLevel returns the current severity threshold.
func (c *Client) LogLevel() int {
	return int(c.logLevel.Load())
}

// AddListener registers a boundary event callback and returns a function
// that removes it. Removal is idempotent.
func (c *Client) AddListener(sink EventSink) (remove func()) {
	if sink == nil {
		return func() {}
	}
	c.sinkMu.Lock()
	c.nextSinkID++
	id := c.nextSinkID
	c.sinks = append(c.sinks, sinkEntry{id: id, sink: sink})
	c.sinkMu.Unlock()

	return func() {
		c.sinkMu.Lock()
		defer c.sinkMu.Unlock()
		for i, entry := range c.sinks {
			if entry.id == id {
				c.sinks = append(c.sinks[:i], c.sinks[i+1:]...)
				return
			}
		}
	}
}

// RemoveAllListeners drops every registered boundary event callback.
func (c *Client) RemoveAllListeners() {
	c.sinkMu.Lock()
	c.sinks = nil
	c.sinkMu.Unlock()
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrEmptyKey, "Client", "validateKey", "key validation")
	}
	return nil
}

// SetString stores a string value.
func (c *Client) SetString(ctx context.Context, key, value string, opts KeyOptions) error {
	return c.setRaw(ctx, key, []byte(value), opts)
}

// GetString retrieves a string value. The boolean reports whether the key
// was present.
func (c *Client) GetString(ctx context.Context, key string, opts KeyOptions) (string, bool, error) {
	raw, found, err := c.getRaw(ctx, key, opts)
	if err != nil || !found {
		return "", false, err
	}
	return string(raw), true, nil
}

// SetInt stores an integer as decimal text.
func (c *Client) SetInt(ctx context.Context, key string, value int64, opts KeyOptions) error {
	return c.setRaw(ctx, key, []byte(strconv.FormatInt(value, 10)), opts)
}

// GetInt retrieves an integer. Stored text that does not parse as a decimal
// integer yields an Invalid-classified error.
func (c *Client) GetInt(ctx context.Context, key string, opts KeyOptions) (int64, bool, error) {
	raw, found, err := c.getRaw(ctx, key, opts)
	if err != nil || !found {
		return 0, false, err
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, errors.WrapInvalid(errors.ErrParsingFailed, "Client", "GetInt", "decode stored value")
	}
	return v, true, nil
}

// SetFloat stores a float as decimal text.
func (c *Client) SetFloat(ctx context.Context, key string, value float64, opts KeyOptions) error {
	return c.setRaw(ctx, key, []byte(strconv.FormatFloat(value, 'f', -1, 64)), opts)
}

// GetFloat retrieves a float.
func (c *Client) GetFloat(ctx context.Context, key string, opts KeyOptions) (float64, bool, error) {
	raw, found, err := c.getRaw(ctx, key, opts)
	if err != nil || !found {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false, errors.WrapInvalid(errors.ErrParsingFailed, "Client", "GetFloat", "decode stored value")
	}
	return v, true, nil
}

// SetBool stores a boolean as the literal text "true" or "false".
func (c *Client) SetBool(ctx context.Context, key string, value bool, opts KeyOptions) error {
	text := "false"
	if value {
		text = "true"
	}
	return c.setRaw(ctx, key, []byte(text), opts)
}

// GetBool retrieves a boolean. Stored text other than "true"/"false" yields
// an Invalid-classified error.
func (c *Client) GetBool(ctx context.Context, key string, opts KeyOptions) (bool, bool, error) {
	raw, found, err := c.getRaw(ctx, key, opts)
	if err != nil || !found {
		return false, false, err
	}
	switch string(raw) {
	case "true":
		return true, true, nil
	case "false":
		return false, true, nil
	default:
		return false, false, errors.WrapInvalid(errors.ErrParsingFailed, "Client", "GetBool", "decode stored value")
	}
}

// SetBytes stores a raw byte value.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte, opts KeyOptions) error {
	return c.setRaw(ctx, key, value, opts)
}

// GetBytes retrieves a raw byte value.
func (c *Client) GetBytes(ctx context.Context, key string, opts KeyOptions) ([]byte, bool, error) {
	return c.getRaw(ctx, key, opts)
}

func (c *Client) setRaw(ctx context.Context, key string, value []byte, opts KeyOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return err
	}
	if err := eng.Set(ctx, StorageKey(key, opts.Namespace), value); err != nil {
		return errors.WrapTransient(err, "Client", "setRaw", "engine write")
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, key string, opts KeyOptions) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return nil, false, err
	}
	value, err := eng.Get(ctx, StorageKey(key, opts.Namespace))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, errors.WrapTransient(err, "Client", "getRaw", "engine read")
	}
	return value, true, nil
}

// Remove deletes a single key.
func (c *Client) Remove(ctx context.Context, key string, opts KeyOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return err
	}
	if err := eng.Delete(ctx, StorageKey(key, opts.Namespace)); err != nil {
		return errors.WrapTransient(err, "Client", "Remove", "engine delete")
	}
	return nil
}

// RemoveMany deletes multiple keys. Deletion stops at the first engine
// failure.
func (c *Client) RemoveMany(ctx context.Context, keys []string, opts KeyOptions) error {
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		if err := eng.Delete(ctx, StorageKey(key, opts.Namespace)); err != nil {
			return errors.WrapTransient(err, "Client", "RemoveMany", "engine delete")
		}
	}
	return nil
}

// AllKeys enumerates keys in the selected partition. With a namespace, keys
// are filtered by prefix and returned stripped, preserving engine
// enumeration order.
func (c *Client) AllKeys(ctx context.Context, opts KeyOptions) ([]string, error) {
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return nil, err
	}
	keys, err := eng.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "AllKeys", "engine enumeration")
	}
	return FilterKeys(keys, opts.Namespace), nil
}

// Contains reports whether a key exists in the selected partition.
func (c *Client) Contains(ctx context.Context, key string, opts KeyOptions) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return false, err
	}
	exists, err := eng.Contains(ctx, StorageKey(key, opts.Namespace))
	if err != nil {
		return false, errors.WrapTransient(err, "Client", "Contains", "engine lookup")
	}
	return exists, nil
}

// Count returns the number of keys in the selected partition. With a
// namespace this enumerates and filters; without, the engine's native count
// is used.
func (c *Client) Count(ctx context.Context, opts KeyOptions) (int, error) {
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return 0, err
	}
	if opts.Namespace == "" {
		n, err := eng.Count(ctx)
		if err != nil {
			return 0, errors.WrapTransient(err, "Client", "Count", "engine count")
		}
		return n, nil
	}
	keys, err := eng.Keys(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Client", "Count", "engine enumeration")
	}
	return len(FilterKeys(keys, opts.Namespace)), nil
}

// TotalSize returns the approximate storage footprint of the instance.
// Namespaces share an instance, so the size always covers the whole
// instance.
func (c *Client) TotalSize(ctx context.Context, opts KeyOptions) (int64, error) {
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return 0, err
	}
	size, err := eng.TotalSize(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Client", "TotalSize", "engine size")
	}
	return size, nil
}

// ClearAll removes every key in the selected partition. With a namespace,
// only namespaced keys are removed; without, the engine's native clear is
// used.
func (c *Client) ClearAll(ctx context.Context, opts KeyOptions) error {
	eng, err := c.engine(opts.InstanceID)
	if err != nil {
		return err
	}
	if opts.Namespace == "" {
		if err := eng.Clear(ctx); err != nil {
			return errors.WrapTransient(err, "Client", "ClearAll", "engine clear")
		}
		return nil
	}
	keys, err := eng.Keys(ctx)
	if err != nil {
		return errors.WrapTransient(err, "Client", "ClearAll", "engine enumeration")
	}
	for _, raw := range FilterKeys(keys, opts.Namespace) {
		if err := eng.Delete(ctx, StorageKey(raw, opts.Namespace)); err != nil {
			return errors.WrapTransient(err, "Client", "ClearAll", "engine delete")
		}
	}
	return nil
}

// Close closes every opened engine instance. The first error is returned,
// but all engines are closed regardless.
func (c *Client) Close() error {
	var firstErr error
	c.engines.Range(func(id string, eng Engine) bool {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "Client", "Close", "close instance "+id)
		}
		c.engines.Delete(id)
		return true
	})
	return firstErr
}
