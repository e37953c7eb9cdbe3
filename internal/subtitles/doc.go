// Package subtitles turns raw caption payloads into ordered fragments, cleans
// fragment text for storage, and merges overlapping fragments into phrases.
//
// Parsing never rejects input: malformed timecodes degrade to zero and
// unrecognised lines are skipped. Merging is a fold over fragments sorted by
// start time; its output is stable under a second pass.
package subtitles
