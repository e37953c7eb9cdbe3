// Package workflow drives the pipeline from the video table.
//
// The Manager polls on a fixed interval. Each tick reclaims videos stuck in
// processing, continues partial videos whose chunks are still queued, runs a
// bounded batch of the oldest pending videos, and periodically purges expired
// chunks. Per-video exclusivity is the pipeline's concern; the manager only
// decides what to attempt next.
package workflow
