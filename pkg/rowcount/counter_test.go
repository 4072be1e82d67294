package rowcount

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/eunmann/csvrows/internal/logctx"
	"github.com/rs/zerolog"
)

var countCases = []struct {
	name       string
	input      string
	withHeader int64
	noHeader   int64
}{
	{"empty", "", 0, 0},
	{"header only no newline", "name,age", 0, 1},
	{"header only", "name,age\n", 0, 1},
	{"simple", "name,age\nAlice,30\nBob,25\n", 2, 3},
	{"no final newline", "name,age\nAlice,30\nBob,25", 2, 3},
	{"quoted newline and comma", "h\n\"a\nb,c\"\n", 1, 2},
	{"comma in quotes", "first,last,address,city,zip\nJohn,Doe,120 any st.,\"Anytown, WW\",08123\n", 1, 2},
	{"escaped quotes", "a,b\n1,\"ha \"\"ha\"\" ha\"\n3,4\n", 2, 3},
	{"json field", "key,val\n1,\"{\"\"type\"\": \"\"Point\"\", \"\"coordinates\"\": [102.0, 0.5]}\"\n", 1, 2},
	{"quotes and newlines", "a,b\n1,\"ha \n\"\"ha\"\" \nha\"\n3,4\n", 2, 3},
	{"empty fields", "a,b,c\n1,\"\",\"\"\n2,3,4\n", 2, 3},
	{"empty crlf", "a,b,c\r\n1,\"\",\"\"\r\n2,3,4\r\n", 2, 3},
	{"crlf", "a,b\r\n1,2\r\n", 1, 2},
	{"cr only", "a,b\r1,2\r", 1, 2},
	{"crlf inside quotes", "a,b,c\r\n1,2,3\r\n\"Once upon \r\na time\",5,6\r\n7,8,9\r\n", 3, 4},
	{"utf8", "a,b,c\n1,2,3\n4,5,ʤ\n", 2, 3},
	{"bom", "\xEF\xBB\xBFa,b\n1,2\n", 1, 2},
	{"bom then quote", "\xEF\xBB\xBF\"a\",b\n1,2\n", 1, 2},
	{"partial bom is data", "\xEF\xBB", 0, 1},
	{"blank lines skipped", "a,b\n\n1,2\n\n\n3,4", 2, 3},
	{"only blank lines", "\n\r\n\n", 0, 0},
	{"empty unquoted fields", ",\n,\n", 1, 2},
	{"bare quote is literal", "a\"b,c\n", 0, 1},
	{"text after closing quote", "\"ab\"cd,e\n", 0, 1},
	{"quoted field at eof", "a\n\"x\"", 1, 2},
	{"empty quoted field at eof", "a\n\"\"", 1, 2},
}

// feed writes input to a fresh counter in chunks of size n.
func feed(t *testing.T, input string, hasHeader bool, n int) (int64, error) {
	t.Helper()
	c := NewCounter(Options{HasHeader: hasHeader})
	data := []byte(input)
	for len(data) > 0 {
		k := min(n, len(data))
		if _, err := c.Write(data[:k]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		data = data[k:]
	}
	return c.Finish()
}

func TestCount(t *testing.T) {
	for _, tt := range countCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Count(context.Background(), strings.NewReader(tt.input), Options{HasHeader: true})
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if got != tt.withHeader {
				t.Errorf("with header: got %d, want %d", got, tt.withHeader)
			}

			got, err = Count(context.Background(), strings.NewReader(tt.input), Options{HasHeader: false})
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if got != tt.noHeader {
				t.Errorf("without header: got %d, want %d", got, tt.noHeader)
			}
		})
	}
}

func TestCounter_ChunkSizeIndependent(t *testing.T) {
	for _, tt := range countCases {
		for _, size := range []int{1, 2, 3, 7} {
			got, err := feed(t, tt.input, true, size)
			if err != nil {
				t.Fatalf("%s/chunk=%d: Finish failed: %v", tt.name, size, err)
			}
			if got != tt.withHeader {
				t.Errorf("%s/chunk=%d: got %d, want %d", tt.name, size, got, tt.withHeader)
			}
		}
	}
}

func TestCount_OneByteReader(t *testing.T) {
	for _, tt := range countCases {
		r := iotest.OneByteReader(strings.NewReader(tt.input))
		got, err := Count(context.Background(), r, Options{HasHeader: false, BufferSize: 16})
		if err != nil {
			t.Fatalf("%s: Count failed: %v", tt.name, err)
		}
		if got != tt.noHeader {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.noHeader)
		}
	}
}

func TestCount_DataErrReader(t *testing.T) {
	// A final Read that returns data together with io.EOF must still count.
	r := iotest.DataErrReader(strings.NewReader("name,age\nAlice,30\nBob,25\n"))
	got, err := Count(context.Background(), r, DefaultOptions())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestCount_Idempotent(t *testing.T) {
	input := "name,age\nAlice,30\n\"Bob\nBuilder\",25\n"
	first, err := Count(context.Background(), strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	second, err := Count(context.Background(), strings.NewReader(input), DefaultOptions())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if first != second || first != 2 {
		t.Errorf("runs returned %d and %d, want 2 and 2", first, second)
	}
}

func TestCount_UnterminatedQuote(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLine   int64
		wantOffset int64
	}{
		{"single line", `a,"unterminated`, 1, 2},
		{"after header", "h\n\"abc\nxyz", 2, 2},
		{"after bom", "\xEF\xBB\xBF\"x", 1, 3},
		{"lone quote", `"`, 1, 0},
		{"escaped quote then eof", `a,"b""`, 1, 2},
		{"lf inside earlier quoted field", "h\n\"a\nb\"\n\"un\nterminated", 4, 8},
		{"cr inside earlier quoted field", "h\r\"a\rb\"\r\"un\rterminated", 4, 8},
		{"crlf inside earlier quoted field", "h\r\n\"a\r\nb\"\r\n\"un\r\nterminated", 4, 11},
		{"cr then escaped quote", "\"a\r\"\"\nb\"\n\"x", 4, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, hasHeader := range []bool{true, false} {
				r := io.Reader(strings.NewReader(tt.input))
				if hasHeader {
					// Splits every "\r\n" across reads.
					r = iotest.OneByteReader(r)
				}
				n, err := Count(context.Background(), r, Options{HasHeader: hasHeader})
				if n != 0 {
					t.Errorf("partial count %d returned with error", n)
				}
				if !errors.Is(err, ErrUnterminatedQuote) {
					t.Fatalf("expected ErrUnterminatedQuote, got %v", err)
				}
				var mErr *MalformedInputError
				if !errors.As(err, &mErr) {
					t.Fatalf("expected *MalformedInputError, got %T", err)
				}
				if mErr.Line != tt.wantLine || mErr.Offset != tt.wantOffset {
					t.Errorf("location = line %d byte %d, want line %d byte %d",
						mErr.Line, mErr.Offset, tt.wantLine, tt.wantOffset)
				}
			}
		})
	}
}

func TestCount_ReadError(t *testing.T) {
	r := iotest.TimeoutReader(iotest.OneByteReader(strings.NewReader("a,b\n1,2\n")))

	n, err := Count(context.Background(), r, DefaultOptions())
	if n != 0 {
		t.Errorf("partial count %d returned with error", n)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IOError, got %T: %v", err, err)
	}
	if ioErr.Op != "read" {
		t.Errorf("Op = %q, want read", ioErr.Op)
	}
	if !errors.Is(err, iotest.ErrTimeout) {
		t.Errorf("expected iotest.ErrTimeout in chain, got %v", err)
	}
}

func TestCount_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Count(ctx, strings.NewReader("a\n1\n"), DefaultOptions())
	if n != 0 {
		t.Errorf("count %d returned after cancellation", n)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCounter_FinishIsRepeatable(t *testing.T) {
	c := NewCounter(DefaultOptions())
	c.Write([]byte("h\n1\n2"))

	first, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	second, err := c.Finish()
	if err != nil {
		t.Fatalf("second Finish failed: %v", err)
	}
	if first != 2 || second != 2 {
		t.Errorf("Finish returned %d then %d, want 2 twice", first, second)
	}

	if _, err := c.Write([]byte("3\n")); !errors.Is(err, ErrFinished) {
		t.Errorf("Write after Finish = %v, want ErrFinished", err)
	}
}

func TestCounter_FinishRepeatsError(t *testing.T) {
	c := NewCounter(DefaultOptions())
	c.Write([]byte(`"open`))

	_, first := c.Finish()
	_, second := c.Finish()
	if !errors.Is(first, ErrUnterminatedQuote) || !errors.Is(second, ErrUnterminatedQuote) {
		t.Errorf("Finish errors = %v, %v; want ErrUnterminatedQuote twice", first, second)
	}
}

func TestCounter_Stats(t *testing.T) {
	input := "name,age\nAlice,30\n\nBob,\"25\"\n"
	c := NewCounter(DefaultOptions())
	c.Write([]byte(input))
	if _, err := c.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	st := c.Stats()
	want := Stats{Bytes: int64(len(input)), Records: 3, Rows: 2, Fields: 6, BlankLines: 1}
	if st != want {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}
}

func TestCounter_RowsDuringWrites(t *testing.T) {
	c := NewCounter(DefaultOptions())
	c.Write([]byte("h\n1\n2\n3"))

	// The trailing "3" is not complete until Finish.
	if got := c.Rows(); got != 2 {
		t.Errorf("Rows() = %d, want 2", got)
	}
	if got := c.BytesConsumed(); got != 7 {
		t.Errorf("BytesConsumed() = %d, want 7", got)
	}
}

func TestCount_LogsToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logctx.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	if _, err := Count(ctx, strings.NewReader("a\n1\n"), DefaultOptions()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"stream consumed"`) || !strings.Contains(out, `"rows":1`) {
		t.Errorf("expected debug summary, got: %s", out)
	}
}

func TestErrorMessages(t *testing.T) {
	mErr := &MalformedInputError{Line: 3, Offset: 17, Err: ErrUnterminatedQuote}
	if got := mErr.Error(); !strings.Contains(got, "line 3") || !strings.Contains(got, "byte 17") {
		t.Errorf("MalformedInputError.Error() = %q", got)
	}

	ioErr := &IOError{Op: "open", Path: "data.csv", Err: errors.New("boom")}
	if got := ioErr.Error(); got != "open data.csv: boom" {
		t.Errorf("IOError.Error() = %q, want %q", got, "open data.csv: boom")
	}
	ioErr = &IOError{Op: "read", Err: errors.New("boom")}
	if got := ioErr.Error(); got != "read input: boom" {
		t.Errorf("IOError.Error() = %q, want %q", got, "read input: boom")
	}

	var nilErr *MalformedInputError
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Error("nil MalformedInputError should be empty")
	}
}
