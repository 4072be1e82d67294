// Package memdiag reports Go runtime memory statistics, used to confirm that
// counting memory stays flat regardless of input size.
package memdiag

import (
	"runtime"

	"github.com/eunmann/csvrows/pkg/logging"
)

// Stats holds memory statistics from runtime.
type Stats struct {
	// HeapInuse is bytes in in-use heap spans.
	HeapInuse uint64
	// TotalAlloc is cumulative bytes allocated (even if freed).
	TotalAlloc uint64
	// Sys is bytes obtained from the OS.
	Sys uint64
	// NumGC is the number of completed GC cycles.
	NumGC uint32
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapInuse:  m.HeapInuse,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// Since returns the allocation and GC activity between s and now, keeping
// the current in-use and OS figures.
func (s Stats) Since(before Stats) Stats {
	return Stats{
		HeapInuse:  s.HeapInuse,
		TotalAlloc: s.TotalAlloc - before.TotalAlloc,
		Sys:        s.Sys,
		NumGC:      s.NumGC - before.NumGC,
	}
}

// AddTo attaches the statistics to a completion event.
func (s Stats) AddTo(ce *logging.CompletionEvent) *logging.CompletionEvent {
	return ce.
		Bytes("heap_inuse", int64(s.HeapInuse)).
		Bytes("alloc_total", int64(s.TotalAlloc)).
		Bytes("sys", int64(s.Sys)).
		Int64("num_gc", int64(s.NumGC))
}
