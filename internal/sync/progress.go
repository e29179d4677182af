package sync

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// Progress is the explicit accumulator for a run's transfer counters. It
// is threaded through the apply step rather than living in package
// globals, so a canned action list and a final assertion are all a test
// needs. File completion and byte completion are tracked and reported
// independently: they diverge whenever file sizes vary.
type Progress struct {
	mu         sync.Mutex
	filesDone  int
	filesTotal int
	bytesDone  int64
	bytesTotal int64
}

func NewProgress() *Progress {
	return &Progress{}
}

// AddTotals grows the denominators before any action is applied.
func (p *Progress) AddTotals(t Totals) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesTotal += t.Files
	p.bytesTotal += t.Bytes
}

// Complete records one finished transfer of size bytes.
func (p *Progress) Complete(size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesDone++
	p.bytesDone += size
}

// FilePercent is 100*done/total by file count. An empty run is complete.
func (p *Progress) FilePercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return percent(float64(p.filesDone), float64(p.filesTotal))
}

// BytePercent is 100*done/total by byte count. An empty run is complete.
func (p *Progress) BytePercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return percent(float64(p.bytesDone), float64(p.bytesTotal))
}

// Counts returns the four raw facets: files done/total, bytes done/total.
func (p *Progress) Counts() (filesDone, filesTotal int, bytesDone, bytesTotal int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filesDone, p.filesTotal, p.bytesDone, p.bytesTotal
}

// String renders a human-readable progress line, e.g.
// "3/10 files (30.0%) | 1.5 MB/12 MB (12.5%)".
func (p *Progress) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%d/%d files (%.1f%%) | %s/%s (%.1f%%)",
		p.filesDone, p.filesTotal,
		percent(float64(p.filesDone), float64(p.filesTotal)),
		humanize.Bytes(uint64(p.bytesDone)), humanize.Bytes(uint64(p.bytesTotal)),
		percent(float64(p.bytesDone), float64(p.bytesTotal)),
	)
}

func percent(done, total float64) float64 {
	if total == 0 {
		return 100.0
	}
	return 100.0 * done / total
}
