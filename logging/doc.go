// Package logging routes storage-boundary diagnostics onto event streams
// with per-application isolation.
//
// A Router attaches to a Source (normally a kvstore.Client), pushes a
// severity threshold down to the boundary, and republishes surviving events
// onto a stream.Subject after applying an optional predicate filter. Derived
// views (ErrorLogs, LogsForInstance, FilteredLogs) are lazy: they hold a
// subscription to the router's stream only while they have subscribers of
// their own.
//
// A Registry keeps one Router per application identifier, created lazily.
// The registry is an explicit object injected by the caller rather than a
// package-level global, so tests can construct and tear down isolated
// instances.
package logging
