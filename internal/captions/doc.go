// Package captions retrieves caption payloads for a video by walking an
// ordered list of acquisition strategies until one yields parseable cues.
//
// Strategies, in order:
//   - official_api: YouTube Data API caption listing plus track download
//   - watch_page: caption tracks embedded in the watch page player response
//   - innertube: caption tracks listed by the innertube player client
//   - timedtext: direct timedtext probes for en, en-US and the default track
//
// Failures are classified as absent, quota/auth or transient so callers can
// tell a video without captions from one worth retrying later.
package captions
