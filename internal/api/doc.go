// Package api serves the admin HTTP surface: video registration and manual
// processing, chunk queue inspection and maintenance, and recovery actions
// for stuck runs.
//
// DTOs use snake_case JSON tags. Timestamps are RFC3339 with milliseconds.
// Errors are reported as {"error": "..."} with a status derived from the
// services error markers.
package api
