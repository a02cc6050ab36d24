package signalstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dave-morgan/signalkv/stream"
)

// Cell is a reactive view over a single stored key. Reads and writes operate
// on local state and never block on storage: a write updates the cell
// synchronously and persists in the background, and the initial stored value
// arrives through an asynchronous hydration that is discarded if a local
// write has happened in the meantime.
type Cell[T any] struct {
	key   string
	codec Codec[T]

	mu         sync.Mutex
	value      T
	generation uint64

	// persistMu serializes background persists; persistedGen tracks the
	// newest generation written to storage so a late persist of an older
	// value is skipped instead of clobbering a newer one.
	persistMu    sync.Mutex
	persistedGen uint64

	hydrated chan struct{}

	read    func(ctx context.Context) (string, bool, error)
	write   func(ctx context.Context, value string) error
	changes *stream.Subject[T]
	logger  *slog.Logger
	stats   *Stats
	metrics *storeMetrics
	wg      *sync.WaitGroup
}

// Get returns the current cell value. Before hydration completes this is the
// seeded default; afterwards it reflects the stored value unless a local
// write superseded it.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set updates the cell synchronously and schedules a background persist.
// A Get on any goroutine observes the new value as soon as Set returns;
// persistence failures are logged and counted but never surfaced to the
// writer.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.changes.Next(v)

	c.wg.Add(1)
	go c.persist(v, gen)
}

// Changes exposes the cell's update stream. Subscribers receive every value
// that lands in the cell, whether from a local write or a hydration.
func (c *Cell[T]) Changes() *stream.Subject[T] {
	return c.changes
}

// Hydrated is closed once the initial load from storage has settled, whether
// it found a value, missed, or failed. Useful for tests and for callers that
// want to read the stored value rather than the seeded default.
func (c *Cell[T]) Hydrated() <-chan struct{} {
	return c.hydrated
}

func (c *Cell[T]) persist(v T, gen uint64) {
	defer c.wg.Done()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if gen <= c.persistedGen {
		// A newer write already reached storage.
		return
	}

	encoded, err := c.codec.Encode(v)
	if err != nil {
		c.stats.persistFailures.Add(1)
		c.metrics.persistFailure()
		c.logger.Warn("value encoding failed, write not persisted",
			"key", c.key, "error", err)
		return
	}
	if err := c.write(context.Background(), encoded); err != nil {
		c.stats.persistFailures.Add(1)
		c.metrics.persistFailure()
		c.logger.Warn("background persist failed, local value retained",
			"key", c.key, "error", err)
		return
	}
	c.persistedGen = gen
}

// hydrate loads the stored value and applies it only if no local write
// happened since gen was snapshotted. Decode failures and storage errors
// leave the seeded default in place.
func (c *Cell[T]) hydrate(ctx context.Context, gen uint64) error {
	encoded, found, err := c.read(ctx)
	if err != nil {
		c.stats.hydrateFailures.Add(1)
		c.metrics.hydrateFailure()
		c.logger.Warn("hydration read failed, keeping current value",
			"key", c.key, "error", err)
		return err
	}
	if !found {
		return nil
	}

	v, err := c.codec.Decode(encoded)
	if err != nil {
		c.stats.hydrateFailures.Add(1)
		c.metrics.hydrateFailure()
		c.logger.Debug("stored value failed to decode, keeping current value",
			"key", c.key, "error", err)
		return nil
	}

	c.mu.Lock()
	if c.generation != gen {
		// A local write landed while the read was in flight; the write wins.
		c.mu.Unlock()
		return nil
	}
	c.value = v
	c.mu.Unlock()

	c.changes.Next(v)
	return nil
}

// resync snapshots the current generation and re-runs hydration against it,
// so a concurrent write still takes precedence over the refreshed read.
func (c *Cell[T]) resync(ctx context.Context) error {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	return c.hydrate(ctx, gen)
}
