// Package dedup removes candidate phrases that repeat already persisted
// phrases or earlier candidates of the same run.
package dedup

import (
	"math"
	"slices"

	"phraseindex/internal/queue"
	"phraseindex/internal/textutil"
)

// Options tunes duplicate detection.
type Options struct {
	// Window is the maximum start-time distance, in seconds, for two phrases to count as duplicates.
	Window float64
	// Threshold is the similarity a candidate pair must exceed to be collapsed.
	Threshold float64
}

// DefaultOptions returns the two-second window and 0.9 similarity threshold.
func DefaultOptions() Options {
	return Options{Window: 2.0, Threshold: 0.9}
}

// Stats reports why candidates were dropped.
type Stats struct {
	Candidates int
	Empty      int
	Persisted  int
	InBatch    int
	Kept       int
}

// Dropped returns the number of candidates removed for any reason.
func (s Stats) Dropped() int {
	return s.Empty + s.Persisted + s.InBatch
}

type keyed struct {
	key   string
	start float64
}

// Filter returns the candidates that neither match a persisted phrase nor
// repeat an earlier candidate. Candidates are processed in start order and
// the input slice is not modified.
func Filter(candidates, persisted []queue.Phrase, opts Options) ([]queue.Phrase, Stats) {
	if opts.Window <= 0 {
		opts.Window = DefaultOptions().Window
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultOptions().Threshold
	}

	stats := Stats{Candidates: len(candidates)}
	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, func(a, b queue.Phrase) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})

	index := indexPersisted(persisted)
	kept := make([]queue.Phrase, 0, len(ordered))
	keptKeys := make([]keyed, 0, len(ordered))

	for _, candidate := range ordered {
		key := textutil.ComparisonKey(candidate.Text)
		if key == "" {
			stats.Empty++
			continue
		}
		if matchesPersisted(index[key], candidate.Start, opts.Window) {
			stats.Persisted++
			continue
		}
		if repeatsBatch(keptKeys, key, candidate.Start, opts) {
			stats.InBatch++
			continue
		}
		kept = append(kept, candidate)
		keptKeys = append(keptKeys, keyed{key: key, start: candidate.Start})
	}
	stats.Kept = len(kept)
	return kept, stats
}

func indexPersisted(persisted []queue.Phrase) map[string][]float64 {
	index := make(map[string][]float64, len(persisted))
	for _, phrase := range persisted {
		key := textutil.ComparisonKey(phrase.Text)
		if key == "" {
			continue
		}
		index[key] = append(index[key], phrase.Start)
	}
	return index
}

func matchesPersisted(starts []float64, start, window float64) bool {
	for _, existing := range starts {
		if math.Abs(existing-start) < window {
			return true
		}
	}
	return false
}

// repeatsBatch walks kept candidates backwards while they remain inside the window.
func repeatsBatch(kept []keyed, key string, start float64, opts Options) bool {
	for i := len(kept) - 1; i >= 0; i-- {
		if math.Abs(start-kept[i].start) >= opts.Window {
			break
		}
		if textutil.Similarity(kept[i].key, key) > opts.Threshold {
			return true
		}
	}
	return false
}
