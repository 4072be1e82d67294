package source

import (
	"io"
	"sync/atomic"
)

// countingReader counts bytes passing through it.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n.Add(int64(n))
	return n, err
}

func (cr *countingReader) BytesRead() int64 {
	return cr.n.Load()
}
