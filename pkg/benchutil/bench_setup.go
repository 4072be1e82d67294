package benchutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SkipIfNoLongBench skips the benchmark if CSVROWS_LONG_BENCH is not set.
// Use this to gate long-running benchmarks that shouldn't run by default.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("CSVROWS_LONG_BENCH") == "" {
		b.Skip("set CSVROWS_LONG_BENCH=1 to run scaling benchmark")
	}
}

// WriteCSVFile generates a CSV file under a test temp dir and returns its
// path and size.
func WriteCSVFile(tb testing.TB, name string, cfg GeneratorConfig) (string, int64) {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	n, err := NewGenerator(cfg).WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path, n
}
