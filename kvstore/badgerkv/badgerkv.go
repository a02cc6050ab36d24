// Package badgerkv adapts dgraph-io/badger to the kvstore.Engine interface.
// Badger's own log output is redirected onto the engine's EventSink so
// backend diagnostics flow through the same channel as every other engine.
package badgerkv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"

	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
)

const defaultInstanceDir = "default"

// Engine is a badger-backed kvstore.Engine.
type Engine struct {
	db *badger.DB

	sinkMu sync.RWMutex
	sink   kvstore.EventSink
}

var _ kvstore.Engine = (*Engine)(nil)
var _ kvstore.EventReporter = (*Engine)(nil)

// sinkLogger implements badger.Logger on top of the engine's event sink.
type sinkLogger struct {
	engine *Engine
}

func (l *sinkLogger) Errorf(format string, args ...any) {
	l.engine.emit(kvstore.LevelError, format, args...)
}

func (l *sinkLogger) Warningf(format string, args ...any) {
	l.engine.emit(kvstore.LevelWarn, format, args...)
}

func (l *sinkLogger) Infof(format string, args ...any) {
	l.engine.emit(kvstore.LevelInfo, format, args...)
}

func (l *sinkLogger) Debugf(format string, args ...any) {
	l.engine.emit(kvstore.LevelDebug, format, args...)
}

// Open opens (or creates) a badger database at dir.
func Open(dir string) (*Engine, error) {
	e := &Engine{}
	opts := badger.DefaultOptions(dir)
	opts.Logger = &sinkLogger{engine: e}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapTransient(err, "badgerkv", "Open", "open database")
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

func (e *Engine) emit(level int, format string, args ...any) {
	e.sinkMu.RLock()
	sink := e.sink
	e.sinkMu.RUnlock()
	if sink != nil {
		sink(level, strings.TrimRight(fmt.Sprintf(format, args...), "\n"), "")
	}
}

func translateError(err error) error {
	switch err {
	case nil:
		return nil
	case badger.ErrKeyNotFound:
		return errors.ErrKeyNotFound
	case badger.ErrEmptyKey:
		return errors.ErrEmptyKey
	default:
		return err
	}
}

func (e *Engine) Set(_ context.Context, key string, value []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return errors.WrapTransient(translateError(err), "badgerkv", "Set", "write")
	}
	return nil
}

func (e *Engine) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(translateError(err), "badgerkv", "Get", "read")
	}
	return value, nil
}

func (e *Engine) Delete(_ context.Context, key string) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return errors.WrapTransient(translateError(err), "badgerkv", "Delete", "delete")
	}
	return nil
}

func (e *Engine) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "badgerkv", "Keys", "iterate")
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
	lsm, vlog := e.db.Size()
	return lsm + vlog, nil
}

func (e *Engine) Clear(_ context.Context) error {
	if err := e.db.DropAll(); err != nil {
		return errors.WrapTransient(err, "badgerkv", "Clear", "drop all")
	}
	return nil
}

func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return errors.Wrap(err, "badgerkv", "Close", "close database")
	}
	return nil
}
