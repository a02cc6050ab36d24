// Package kvstore defines the key-value engine boundary and the typed client
// that sits above it.
//
// An Engine is a single, namespace-unaware storage instance keyed by raw
// strings. Backend packages (pebblekv, badgerkv, natskv) adapt real storage
// engines to the interface; MemoryEngine serves tests and zero-config use.
//
// Client multiplexes operations across lazily-opened instances, encodes
// typed values as text on the wire (decimal ints and floats, literal
// "true"/"false" booleans, raw strings and bytes), and applies namespace
// prefixes before keys reach an engine. Namespacing is a pure prefix scheme
// implemented once in keys.go and shared with the signal layer.
//
// Engines may report backend diagnostics through an EventSink; the client
// filters them against a severity threshold before forwarding, which is the
// raw feed consumed by the logging package's routers.
package kvstore
