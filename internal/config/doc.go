// Package config loads, normalizes, and validates phraseindex configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY and PHRASEINDEX_AMQP_URL. Tuning knobs for merging,
// deduplication, batching and chunk draining all live here so the pipeline
// stages receive one consistent set of values.
package config
