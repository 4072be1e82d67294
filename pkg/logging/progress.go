package logging

import (
	"context"
	"time"

	"github.com/eunmann/csvrows/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		ce.fields["throughput_bps"] = float64(bytes) / ce.elapsed.Seconds()
		if IsPrettyMode() {
			ce.fields["throughput_h"] = humanfmt.Throughput(bytes, ce.elapsed)
		}
	}
	return ce
}

// Log emits the completion event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())
	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}
	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// PhaseComplete starts a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// ProgressFunc reports the bytes read and rows counted so far. It is called
// from the reporting goroutine and must be safe for that.
type ProgressFunc func() (bytes, rows int64)

// ReportProgress logs a "progress" event every interval until ctx is done.
// It always returns nil so it can run inside an errgroup next to the work it
// observes.
func ReportProgress(ctx context.Context, log zerolog.Logger, phase string, interval time.Duration, progress ProgressFunc) error {
	if interval <= 0 || progress == nil {
		return nil
	}
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			bytes, rows := progress()
			NewCompletionEvent(log, "progress", phase, time.Since(start)).
				Bytes("bytes_read", bytes).
				Count("rows", rows).
				Throughput(bytes).
				Log("counting")
		}
	}
}
