package admission

import (
	"log"
	"sync/atomic"

	"github.com/prometheus/procfs"
)

// MemoryState is the admission verdict for a current-or-prospective RSS
// reading.
type MemoryState int

const (
	MemoryOK MemoryState = iota
	MemorySoft
	MemoryHard
)

// DefaultExpectedRequestSize is the typical per-request memory footprint
// §4.6 folds into every admission check ("a typical-size constant (64 KiB)").
const DefaultExpectedRequestSize = 64 * 1024

// MemoryMonitor samples the process's resident set size from procfs and
// classifies it, plus a caller-supplied expected request size, against
// configured soft/hard watermarks.
type MemoryMonitor struct {
	softLimit int64
	hardLimit int64
	proc      procfs.Proc
	lastRSS   atomic.Int64
}

// NewMemoryMonitor opens /proc for the current process. softLimit must be
// less than hardLimit.
func NewMemoryMonitor(softLimit, hardLimit int64) (*MemoryMonitor, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	proc, err := fs.Self()
	if err != nil {
		return nil, err
	}
	return &MemoryMonitor{softLimit: softLimit, hardLimit: hardLimit, proc: proc}, nil
}

// CheckAvailable samples current RSS and classifies current_rss + expected
// against the soft/hard watermarks (§4.6): admission is refused only once
// that sum exceeds the hard limit; a sum above the soft limit but at or
// below the hard limit is admitted, with a warning logged.
func (m *MemoryMonitor) CheckAvailable(expected int64) (MemoryState, int64, error) {
	stat, err := m.proc.Stat()
	if err != nil {
		return MemoryOK, 0, err
	}
	rss := int64(stat.ResidentMemory())
	m.lastRSS.Store(rss)

	projected := rss + expected
	switch {
	case projected > m.hardLimit:
		return MemoryHard, rss, nil
	case projected > m.softLimit:
		log.Printf("[admission] memory pressure: rss=%d expected=%d exceeds soft limit %d (hard limit %d)", rss, expected, m.softLimit, m.hardLimit)
		return MemorySoft, rss, nil
	default:
		return MemoryOK, rss, nil
	}
}

// Sample reads current RSS and classifies it alone (no expected-size term),
// for callers that only want the raw watermark state, e.g. metrics refresh.
func (m *MemoryMonitor) Sample() (MemoryState, int64, error) {
	return m.CheckAvailable(0)
}

// LastRSS returns the most recently sampled RSS in bytes, or 0 before the
// first sample.
func (m *MemoryMonitor) LastRSS() int64 {
	return m.lastRSS.Load()
}
