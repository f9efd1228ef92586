// Package serialize implements the EventJsonSerializer: a deterministic,
// hand-rolled textual encoding of event records and analyzer snapshots.
//
// A hand-rolled encoder (rather than encoding/json) is used deliberately:
// the wire schema requires fields to be emitted only when present
// (conditional omission keyed on zero-value, not struct tags) and in a
// fixed order, which a reflection-based marshaler cannot guarantee
// without extra allocation per frame on the broadcaster's hot path.
package serialize

import (
	"strconv"
	"strings"

	"github.com/arguslabs/argus/event"
)

// EscapeString applies the wire escaping rules: backslash, double-quote,
// newline, carriage return, and tab. No other characters are escaped.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// objectWriter builds one JSON object with deterministic field order,
// writing only fields that are explicitly included.
type objectWriter struct {
	b     strings.Builder
	count int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.b.WriteByte('{')
	return w
}

func (w *objectWriter) comma() {
	if w.count > 0 {
		w.b.WriteByte(',')
	}
	w.count++
}

func (w *objectWriter) str(key, value string) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":"`)
	w.b.WriteString(EscapeString(value))
	w.b.WriteByte('"')
	return w
}

func (w *objectWriter) strIf(key, value string) *objectWriter {
	if value == "" {
		return w
	}
	return w.str(key, value)
}

func (w *objectWriter) uint(key string, value uint64) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":`)
	w.b.WriteString(strconv.FormatUint(value, 10))
	return w
}

func (w *objectWriter) uintIfPositive(key string, value uint64) *objectWriter {
	if value == 0 {
		return w
	}
	return w.uint(key, value)
}

func (w *objectWriter) int64Field(key string, value int64) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":`)
	w.b.WriteString(strconv.FormatInt(value, 10))
	return w
}

func (w *objectWriter) float(key string, value float64) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":`)
	w.b.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	return w
}

func (w *objectWriter) bool_(key string, value bool) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":`)
	w.b.WriteString(strconv.FormatBool(value))
	return w
}

func (w *objectWriter) raw(key, rawJSON string) *objectWriter {
	w.comma()
	w.b.WriteByte('"')
	w.b.WriteString(key)
	w.b.WriteString(`":`)
	w.b.WriteString(rawJSON)
	return w
}

func (w *objectWriter) bytes() []byte {
	w.b.WriteByte('}')
	return []byte(w.b.String())
}

// VirtualThreadEvent encodes a single VirtualThreadEvent frame per
// spec.md §4.5: always type/threadId/timestamp, conditionally
// threadName/carrierThread/duration/stackTrace.
func VirtualThreadEvent(e event.VirtualThreadEvent) []byte {
	w := newObjectWriter()
	w.str("type", e.Type.String())
	w.uint("threadId", e.ThreadID)
	w.int64Field("timestamp", e.Timestamp.UnixNano())
	w.strIf("threadName", e.ThreadName)
	w.uintIfPositive("carrierThread", e.CarrierThread)
	if e.Duration > 0 {
		w.int64Field("duration", e.Duration.Nanoseconds())
	}
	w.strIf("stackTrace", e.StackTrace)
	return w.bytes()
}
