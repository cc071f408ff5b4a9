// Package output formats display events for the headless watch command.
package output

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/callhud/internal/display"
)

// Formatter formats display events for output.
type Formatter interface {
	// Format writes one formatted event to the writer.
	Format(w io.Writer, ev display.Event) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template string           // Custom text/template for plain format
	ShowTime bool             // Prefix plain lines with the event time
	Now      func() time.Time // Reference for relative call times; defaults to time.Now
}

// DefaultFormatterOptions returns sensible defaults for plain output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{ShowTime: true}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	switch format {
	case FormatPlain, "":
		return NewPlainFormatter(opts)
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatIDs:
		return NewIDsFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q, must be one of: plain, json, yaml, ids", format)
	}
}

// Writer is a display sink that writes every event through a formatter.
// Write errors are logged; the HUD keeps running.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	formatter Formatter
	logger    *slog.Logger
	filter    func(display.EventType) bool
}

// NewWriter creates a sink writing formatted events to w.
func NewWriter(w io.Writer, f Formatter, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{w: w, formatter: f, logger: logger}
}

// SetFilter restricts output to event types for which keep returns true.
func (o *Writer) SetFilter(keep func(display.EventType) bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filter = keep
}

// HandleEvent implements display.Sink.
func (o *Writer) HandleEvent(ev display.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.filter != nil && !o.filter(ev.Type) {
		return
	}
	if err := o.formatter.Format(o.w, ev); err != nil {
		o.logger.Warn("failed to write event", "type", ev.Type, "id", ev.Call.ID, "error", err)
	}
}

// relativeTime formats a call time relative to now.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
