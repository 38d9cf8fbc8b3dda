package agent

import (
	"sync"

	"github.com/dropgate/dropgate/internal/transcode"
)

// BatchTracker folds the per-file progress of a multi-file transfer into one
// overall percentage, weighted by file size so a large file does not crawl
// while small ones sprint the bar to 90. Safe for concurrent use; the
// overall value it reports is non-decreasing.
type BatchTracker struct {
	mu     sync.Mutex
	sizes  []int64
	total  int64
	pcts   []int
	last   int
	report transcode.ProgressFunc
}

// NewBatchTracker builds a tracker over files with the given sizes. The
// aggregate percentage goes to onProgress. Zero-size files carry weight 1 so
// they still contribute to completion.
func NewBatchTracker(sizes []int64, onProgress transcode.ProgressFunc) *BatchTracker {
	t := &BatchTracker{
		sizes:  make([]int64, len(sizes)),
		pcts:   make([]int, len(sizes)),
		report: onProgress,
	}
	for i, s := range sizes {
		if s <= 0 {
			s = 1
		}
		t.sizes[i] = s
		t.total += s
	}
	if t.total == 0 {
		t.total = 1
	}
	return t
}

// File returns the progress callback for the i-th file. Pass it to Upload or
// Download for that file. An out-of-range index yields a no-op callback.
func (t *BatchTracker) File(i int) transcode.ProgressFunc {
	if i < 0 || i >= len(t.pcts) {
		return func(int) {}
	}
	return func(pct int) {
		t.mu.Lock()
		defer t.mu.Unlock()

		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		t.pcts[i] = pct

		var weighted int64
		for j, p := range t.pcts {
			weighted += t.sizes[j] * int64(p)
		}
		overall := int(weighted / t.total)

		// A single file may reset its progress on a retry; the aggregate
		// never goes backwards.
		if overall <= t.last {
			return
		}
		t.last = overall
		if t.report != nil {
			t.report(overall)
		}
	}
}
