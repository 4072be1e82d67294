// Package benchutil provides synthetic CSV generation for benchmarks and testing.
package benchutil

import (
	"bufio"
	"bytes"
	"io"
	"math/rand"
	"strconv"
)

// GeneratorConfig configures synthetic CSV generation.
type GeneratorConfig struct {
	// Rows is the number of data rows, excluding the header.
	Rows int
	// Columns is the number of fields per record.
	Columns int
	// QuoteRate is the probability (0.0-1.0) that a field is quoted.
	QuoteRate float64
	// NewlineRate is the probability that a quoted field embeds a line break.
	NewlineRate float64
	// BlankLineRate is the probability that a blank line follows a record.
	BlankLineRate float64
	// CRLF terminates records with "\r\n" instead of "\n".
	CRLF bool
	// OmitFinalNewline leaves the last record unterminated.
	OmitFinalNewline bool
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a plain, mostly unquoted layout.
func DefaultConfig(rows int) GeneratorConfig {
	return GeneratorConfig{
		Rows:      rows,
		Columns:   8,
		QuoteRate: 0.05,
		Seed:      BenchmarkSeed,
	}
}

// QuoteHeavyConfig returns a layout where most fields are quoted and many
// span lines, the worst case for record splitting.
func QuoteHeavyConfig(rows int) GeneratorConfig {
	return GeneratorConfig{
		Rows:          rows,
		Columns:       6,
		QuoteRate:     0.8,
		NewlineRate:   0.2,
		BlankLineRate: 0.01,
		CRLF:          true,
		Seed:          BenchmarkSeed,
	}
}

// Generator generates synthetic CSV data.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.Columns <= 0 {
		cfg.Columns = 1
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns the whole document in memory.
func (g *Generator) Generate() []byte {
	var buf bytes.Buffer
	_, _ = g.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo streams a header plus cfg.Rows data rows to w.
func (g *Generator) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 64<<10)
	cw := &countingWriter{w: bw}
	eol := "\n"
	if g.cfg.CRLF {
		eol = "\r\n"
	}

	for col := 0; col < g.cfg.Columns; col++ {
		if col > 0 {
			cw.WriteString(",")
		}
		cw.WriteString("col_" + strconv.Itoa(col))
	}
	cw.WriteString(eol)

	for row := 0; row < g.cfg.Rows; row++ {
		for col := 0; col < g.cfg.Columns; col++ {
			if col > 0 {
				cw.WriteString(",")
			}
			g.writeField(cw, row, col)
		}
		if row < g.cfg.Rows-1 || !g.cfg.OmitFinalNewline {
			cw.WriteString(eol)
			if g.rng.Float64() < g.cfg.BlankLineRate {
				cw.WriteString(eol)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

func (g *Generator) writeField(cw *countingWriter, row, col int) {
	if g.rng.Float64() >= g.cfg.QuoteRate {
		cw.WriteString(strconv.Itoa(row*g.cfg.Columns + col))
		return
	}

	cw.WriteString(`"`)
	switch g.rng.Intn(3) {
	case 0:
		cw.WriteString("Anytown, WW")
	case 1:
		cw.WriteString(`ha ""ha"" ha`)
	default:
		cw.WriteString(`{""k"": [1, 2]}`)
	}
	if g.rng.Float64() < g.cfg.NewlineRate {
		if g.cfg.CRLF {
			cw.WriteString("\r\nsecond line")
		} else {
			cw.WriteString("\nsecond line")
		}
	}
	cw.WriteString(`"`)
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) WriteString(s string) {
	if cw.err != nil {
		return
	}
	n, err := io.WriteString(cw.w, s)
	cw.n += int64(n)
	cw.err = err
}
