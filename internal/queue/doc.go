// Package queue persists videos, indexed phrases, and the phrase chunk queue in
// SQLite.
//
// The Store owns connection setup, schema initialization, busy retries and
// every query the pipeline needs: video status transitions, ignore-on-conflict
// phrase inserts, chunk enqueue/complete/fail/purge, and stuck-run recovery.
// Phrase rows are keyed by (video, text, start) so replays of the same write
// are harmless.
//
// Schema changes bump schemaVersion in schema.go; the database is recreated
// rather than migrated.
package queue
