// Package watch implements the change-aggregation engine at the heart
// of batchwatch. It subscribes to filesystem changes under one or more
// roots — natively via fsnotify, or by snapshot polling where native
// notifications are unavailable — and groups the raw event stream into
// debounced batches of (kind, path) pairs.
//
// A Watcher runs a background goroutine that buffers raw events for the
// lifetime of the handle. Each Watch call runs one session of the
// grouping state machine: wait up to a step interval for events, start
// the debounce window on the first one, and return the accumulated
// ChangeSet once the window elapses. Stop signals, process signals, and
// timeouts short-circuit the wait with a distinct outcome so callers
// can tell "nothing changed" from "told to stop" from "broke".
package watch
