// Package pebblekv adapts cockroachdb/pebble to the kvstore.Engine interface.
// One pebble database backs one engine instance; the Opener maps instance IDs
// to subdirectories of a base path. Pebble's event listener diagnostics are
// surfaced through the engine's EventSink.
package pebblekv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
)

// defaultInstanceDir names the directory for the default (empty ID) instance.
const defaultInstanceDir = "default"

// Engine is a pebble-backed kvstore.Engine.
type Engine struct {
	db *pebble.DB

	sinkMu sync.RWMutex
	sink   kvstore.EventSink
}

var _ kvstore.Engine = (*Engine)(nil)
var _ kvstore.EventReporter = (*Engine)(nil)

// Open opens (or creates) a pebble database at dir.
func Open(dir string) (*Engine, error) {
	e := &Engine{}
	opts := &pebble.Options{
		EventListener: &pebble.EventListener{
			BackgroundError: func(err error) {
				e.emit(kvstore.LevelError, fmt.Sprintf("background error: %v", err))
			},
			WriteStallBegin: func(info pebble.WriteStallBeginInfo) {
				e.emit(kvstore.LevelWarn, "write stall: "+info.Reason)
			},
			DiskSlow: func(info pebble.DiskSlowInfo) {
				e.emit(kvstore.LevelWarn, fmt.Sprintf("disk slow: %s took %s", info.Path, info.Duration))
			},
			FlushEnd: func(info pebble.FlushInfo) {
				e.emit(kvstore.LevelDebug, "flush done: "+info.String())
			},
			CompactionEnd: func(info pebble.CompactionInfo) {
				e.emit(kvstore.LevelVerbose, "compaction done: "+info.String())
			},
		},
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "pebblekv", "Open", "open database")
	}
	e.db = db
	return e, nil
}

// Opener returns a kvstore.Opener storing each instance under
// baseDir/<instanceID>.
func Opener(baseDir string) kvstore.Opener {
	return func(instanceID string) (kvstore.Engine, error) {
		dir := instanceID
		if dir == "" {
			dir = defaultInstanceDir
		}
		return Open(filepath.Join(baseDir, dir))
	}
}

// SetEventSink implements kvstore.EventReporter.
func (e *Engine) SetEventSink(sink kvstore.EventSink) {
	e.sinkMu.Lock()
	e.sink = sink
	e.sinkMu.Unlock()
}

func (e *Engine) emit(level int, message string) {
	e.sinkMu.RLock()
	sink := e.sink
	e.sinkMu.RUnlock()
	if sink != nil {
		sink(level, message, "")
	}
}

func (e *Engine) Set(_ context.Context, key string, value []byte) error {
	if err := e.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return errors.WrapTransient(err, "pebblekv", "Set", "write")
	}
	return nil
}

func (e *Engine) Get(_ context.Context, key string) ([]byte, error) {
	value, closer, err := e.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "pebblekv", "Get", "read")
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, errors.WrapTransient(err, "pebblekv", "Get", "release value")
	}
	return out, nil
}

func (e *Engine) Delete(_ context.Context, key string) error {
	if err := e.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.WrapTransient(err, "pebblekv", "Delete", "delete")
	}
	return nil
}

func (e *Engine) Keys(_ context.Context) ([]string, error) {
	iter, err := e.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.WrapTransient(err, "pebblekv", "Keys", "open iterator")
	}
	defer func() { _ = iter.Close() }()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.WrapTransient(err, "pebblekv", "Keys", "iterate")
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

func (e *Engine) TotalSize(_ context.Context) (int64, error) {
	return int64(e.db.Metrics().DiskSpaceUsage()), nil
}

func (e *Engine) Clear(ctx context.Context) error {
	keys, err := e.Keys(ctx)
	if err != nil {
		return err
	}
	batch := e.db.NewBatch()
	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			_ = batch.Close()
			return errors.WrapTransient(err, "pebblekv", "Clear", "batch delete")
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.WrapTransient(err, "pebblekv", "Clear", "commit batch")
	}
	return nil
}

func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return errors.Wrap(err, "pebblekv", "Close", "close database")
	}
	return nil
}
