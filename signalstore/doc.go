// Package signalstore caches reactive cells over the key-value client.
//
// A cell is a typed, observable view of one stored key. Accessors return the
// identical *Cell for the same (instance, namespace, key) triple, so every
// caller shares one value and one update stream. Cells read and write local
// state synchronously; storage is reconciled in the background, with local
// writes always outranking in-flight hydration reads.
//
// Values cross the storage boundary as text through explicit Codec pairs.
// A stored value that fails to decode is treated as absent rather than
// surfaced as an error, leaving the cell at its seeded default.
package signalstore
