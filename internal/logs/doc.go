// Package logs reads the phraseindex log file for the CLI.
//
// Tail returns the last N lines (optionally only those tagged with one
// video_id) and an offset that a follow loop passes back in to poll for
// lines appended since.
package logs
