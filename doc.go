// Package signalkv provides a reactive cache layer over pluggable key-value
// storage engines.
//
// # Architecture
//
// The module is built from four layers, each usable on its own:
//
//	┌─────────────────────────────────────┐
//	│        signalstore.Store            │  Reactive cells: typed,
//	│   (cells, codecs, scoped views)     │  observable, write-through
//	└─────────────────────────────────────┘
//	           ↓ reads and writes
//	┌─────────────────────────────────────┐
//	│         kvstore.Client              │  Typed accessors, instance
//	│  (namespacing, instances, events)   │  multiplexing, namespacing
//	└─────────────────────────────────────┘
//	           ↓ opens
//	┌─────────────────────────────────────┐
//	│         kvstore.Engine              │  memory, pebble, badger,
//	│        (backend drivers)            │  NATS JetStream KV
//	└─────────────────────────────────────┘
//
//	┌─────────────────────────────────────┐
//	│   logging.Registry / Router         │  Boundary diagnostics routed
//	│      over stream.Subject            │  to filtered event streams
//	└─────────────────────────────────────┘
//
// A cell is a typed view of one stored key: reads are local, writes apply
// synchronously and persist in the background, and the stored value arrives
// through an asynchronous hydration that never overwrites a newer local
// write. Equal (instance, namespace, key) coordinates resolve to the
// identical cell, so all callers share one value and one update stream.
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sys, err := signalkv.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sys.Close()
//
//	theme, err := sys.Store.StringWithDefault("theme", "light", signalstore.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	theme.Set("dark") // visible immediately, persisted in the background
//
// Individual layers can be wired directly when the assembled system is more
// than a caller needs:
//
//	client := kvstore.NewClient(pebblekv.Opener("/var/lib/signalkv"))
//	store, err := signalstore.NewStore(client)
package signalkv
