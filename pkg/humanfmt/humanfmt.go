// Package humanfmt provides human-readable formatting for bytes, counts,
// durations, and throughput in log companion fields.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

type unit struct {
	size   float64
	suffix string
}

// Largest first.
var (
	byteUnits  = []unit{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}}
	countUnits = []unit{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// scale returns v expressed in the largest unit it reaches, or ok=false when
// v is below every unit.
func scale(v float64, units []unit) (scaled float64, suffix string, ok bool) {
	for _, u := range units {
		if v >= u.size {
			return v / u.size, u.suffix, true
		}
	}
	return v, "", false
}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	if v, suffix, ok := scale(float64(b), byteUnits); ok {
		return fmt.Sprintf("%.2f %s", v, suffix)
	}
	return fmt.Sprintf("%d B", b)
}

// Count formats a row count with decimal suffixes, e.g. "1.23M", "456", "7.00K".
func Count(n int64) string {
	if v, suffix, ok := scale(float64(n), countUnits); ok {
		return fmt.Sprintf("%.2f%s", v, suffix)
	}
	return strconv.FormatInt(n, 10)
}

// Throughput formats bytes per duration, e.g. "123.40 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	bps := float64(bytes) / d.Seconds()
	if v, suffix, ok := scale(bps, byteUnits); ok {
		return fmt.Sprintf("%.2f %s/s", v, suffix)
	}
	return fmt.Sprintf("%.0f B/s", bps)
}

// Duration formats d compactly: "1.23s", "45.6ms", "789.0µs", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return wholeUnits(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return wholeUnits(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func wholeUnits(major time.Duration, majorSuffix string, minor time.Duration, minorSuffix string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorSuffix)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorSuffix, minor, minorSuffix)
}
