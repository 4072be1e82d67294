// Package rowcount counts CSV records in a byte stream.
//
// Field contents are never buffered: the counter only tracks enough quoting
// state to find record boundaries, so memory use is independent of record
// width and input size. Records end at '\n', '\r' or "\r\n" outside quotes;
// fields are separated by ','; a doubled quote inside a quoted field is a
// literal quote.
package rowcount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/eunmann/csvrows/internal/logctx"
)

// DefaultBufferSize is the read buffer used by Consume and Count.
const DefaultBufferSize = 128 << 10 // 128 KiB

var utf8BOM = [3]byte{0xEF, 0xBB, 0xBF}

// Options configures a Counter.
type Options struct {
	// HasHeader excludes the first record from the count.
	HasHeader bool
	// BufferSize is the read chunk size for Consume. Zero means DefaultBufferSize.
	BufferSize int
}

// DefaultOptions returns options for a CSV file with a header row.
func DefaultOptions() Options {
	return Options{HasHeader: true, BufferSize: DefaultBufferSize}
}

type state uint8

const (
	stateRecordStart   state = iota // nothing seen for the current record
	stateFieldStart                 // just after a ','
	stateField                      // inside an unquoted field
	stateQuoted                     // inside a quoted field
	stateQuoteInQuoted              // saw '"' inside a quoted field
)

// Stats summarizes what a Counter has consumed.
type Stats struct {
	// Bytes is the number of bytes written, including any byte-order mark.
	Bytes int64
	// Records counts every completed record, header included.
	Records int64
	// Rows is Records minus the header when one is expected.
	Rows int64
	// Fields counts every completed field across all records.
	Fields int64
	// BlankLines counts empty lines skipped between records.
	BlankLines int64
}

// Counter is a push-based CSV record counter. Write feeds it arbitrary
// chunks; Finish signals end of stream and returns the row count.
//
// A Counter is single-use and not safe for concurrent writes. Rows and
// BytesConsumed may be called from other goroutines while writes are in
// progress.
type Counter struct {
	hasHeader bool
	bufSize   int

	st      state
	afterCR bool

	bom     [3]byte
	bomLen  int
	bomDone bool

	line        int64
	offset      int64
	quoteLine   int64
	quoteOffset int64
	quotedCR    bool
	fields      int64
	blank       int64

	bytes   atomic.Int64
	records atomic.Int64

	finished bool
	result   int64
	err      error
}

// NewCounter creates a Counter with the given options.
func NewCounter(opts Options) *Counter {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Counter{
		hasHeader: opts.HasHeader,
		bufSize:   size,
		line:      1,
	}
}

// Write consumes p. It never retains p and always consumes all of it.
func (c *Counter) Write(p []byte) (int, error) {
	if c.finished {
		return 0, ErrFinished
	}
	n := len(p)
	c.bytes.Add(int64(n))
	if !c.bomDone {
		p = c.stripBOM(p)
	}
	c.scan(p)
	return n, nil
}

// Finish ends the stream and returns the number of data rows. Trailing data
// without a final newline counts as a record. A stream that ends inside a
// quoted field yields a *MalformedInputError. Repeated calls return the
// same result.
func (c *Counter) Finish() (int64, error) {
	if c.finished {
		return c.result, c.err
	}
	if !c.bomDone {
		c.bomDone = true
		c.scan(c.bom[:c.bomLen])
	}
	c.finished = true

	switch c.st {
	case stateQuoted:
		c.err = &MalformedInputError{Line: c.quoteLine, Offset: c.quoteOffset, Err: ErrUnterminatedQuote}
		return 0, c.err
	case stateRecordStart:
	default:
		c.fields++
		c.records.Add(1)
		c.st = stateRecordStart
	}

	c.result = c.Rows()
	return c.result, nil
}

// Rows returns the data rows completed so far.
func (c *Counter) Rows() int64 {
	n := c.records.Load()
	if c.hasHeader && n > 0 {
		n--
	}
	return n
}

// BytesConsumed returns the number of bytes written so far.
func (c *Counter) BytesConsumed() int64 {
	return c.bytes.Load()
}

// Stats returns a snapshot of the counter. It must not be called
// concurrently with Write.
func (c *Counter) Stats() Stats {
	return Stats{
		Bytes:      c.bytes.Load(),
		Records:    c.records.Load(),
		Rows:       c.Rows(),
		Fields:     c.fields,
		BlankLines: c.blank,
	}
}

// Consume reads r to exhaustion and finishes the counter. The context is
// checked between reads; on cancellation or a read failure the partial count
// is discarded.
func (c *Counter) Consume(ctx context.Context, r io.Reader) (int64, error) {
	log := logctx.FromContext(ctx)
	buf := make([]byte, c.bufSize)

	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := c.Write(buf[:n]); werr != nil {
				return 0, werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, &IOError{Op: "read", Err: err}
		}
	}

	rows, err := c.Finish()
	if err != nil {
		return 0, err
	}

	st := c.Stats()
	log.Debug().
		Int64("bytes", st.Bytes).
		Int64("records", st.Records).
		Int64("fields", st.Fields).
		Int64("blank_lines", st.BlankLines).
		Int64("rows", rows).
		Msg("stream consumed")
	return rows, nil
}

// Count reads r to exhaustion and returns the number of data rows.
func Count(ctx context.Context, r io.Reader, opts Options) (int64, error) {
	return NewCounter(opts).Consume(ctx, r)
}

// stripBOM holds back the first bytes of the stream until they either match
// or rule out a UTF-8 byte-order mark, then returns the unprocessed rest of p.
func (c *Counter) stripBOM(p []byte) []byte {
	for len(p) > 0 && !c.bomDone {
		c.bom[c.bomLen] = p[0]
		c.bomLen++
		p = p[1:]
		if c.bom[c.bomLen-1] != utf8BOM[c.bomLen-1] {
			c.bomDone = true
			c.scan(c.bom[:c.bomLen])
			return p
		}
		if c.bomLen == len(utf8BOM) {
			c.bomDone = true
			c.offset += int64(len(utf8BOM))
		}
	}
	return p
}

// scan advances the state machine over p.
func (c *Counter) scan(p []byte) {
	for i := 0; i < len(p); i++ {
		b := p[i]
		if c.afterCR {
			c.afterCR = false
			if b == '\n' {
				continue
			}
		}

		switch c.st {
		case stateQuoted:
			// Skip straight to the next quote; only line breaks matter in between.
			j := bytes.IndexByte(p[i:], '"')
			if j < 0 {
				c.quotedLines(p[i:])
				i = len(p)
				continue
			}
			c.quotedLines(p[i : i+j])
			c.quotedCR = false
			i += j
			c.st = stateQuoteInQuoted

		case stateQuoteInQuoted:
			switch b {
			case '"':
				c.st = stateQuoted
			case ',':
				c.endField()
			case '\n', '\r':
				c.endRecord(b)
			default:
				c.st = stateField
			}

		case stateRecordStart, stateFieldStart:
			switch b {
			case '\n', '\r':
				if c.st == stateRecordStart {
					c.blankLine(b)
				} else {
					c.endRecord(b)
				}
			case ',':
				c.endField()
			case '"':
				c.st = stateQuoted
				c.quoteLine = c.line
				c.quoteOffset = c.offset + int64(i)
			default:
				c.st = stateField
			}

		case stateField:
			j := indexFieldEnd(p[i:])
			if j < 0 {
				i = len(p)
				continue
			}
			i += j
			if b = p[i]; b == ',' {
				c.endField()
			} else {
				c.endRecord(b)
			}
		}
	}
	c.offset += int64(len(p))
}

func (c *Counter) endField() {
	c.fields++
	c.st = stateFieldStart
}

func (c *Counter) endRecord(term byte) {
	c.fields++
	c.records.Add(1)
	c.newline(term)
}

func (c *Counter) blankLine(term byte) {
	c.blank++
	c.newline(term)
}

func (c *Counter) newline(term byte) {
	c.st = stateRecordStart
	c.line++
	c.afterCR = term == '\r'
}

// quotedLines advances the line number over the inside of a quoted field,
// counting "\r\n" as one break just like newline does.
func (c *Counter) quotedLines(p []byte) {
	if len(p) == 0 {
		return
	}
	if !c.quotedCR && bytes.IndexByte(p, '\r') < 0 {
		c.line += int64(bytes.Count(p, []byte{'\n'}))
		return
	}
	for _, b := range p {
		if b == '\r' || (b == '\n' && !c.quotedCR) {
			c.line++
		}
		c.quotedCR = b == '\r'
	}
}

// indexFieldEnd returns the index of the first byte in p that ends an
// unquoted field, or -1.
func indexFieldEnd(p []byte) int {
	for i, b := range p {
		if b == ',' || b == '\n' || b == '\r' {
			return i
		}
	}
	return -1
}
