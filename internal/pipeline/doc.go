// Package pipeline runs one video through acquisition, cleanup, merging,
// deduplication and writing, and resumes queued writes on later invocations.
//
// A run owns the video's run lock for its whole duration. Small phrase sets
// are written inline; larger ones are checkpointed into the chunk queue first
// and drained a few chunks per invocation.
package pipeline
