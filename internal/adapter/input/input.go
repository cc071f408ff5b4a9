// Package input provides feed adapters that turn call streams into Calls.
package input

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/model"
)

// StdinSource is the source name for standard input.
const StdinSource = "stdin"

// Sink receives decoded calls. Returning an error stops the feed.
type Sink func(model.Call) error

// FeedAdapter streams calls from a source.
type FeedAdapter interface {
	// Name returns the source identifier (e.g., "stdin" or a file path).
	Name() string

	// Stream decodes calls and hands each valid one to sink until the
	// source is exhausted or ctx is done.
	Stream(ctx context.Context, sink Sink) error
}

// NewAdapter creates a FeedAdapter for source. An empty source or "-"
// reads standard input; anything else is opened as a file.
// The returned closer releases the source.
func NewAdapter(source, format string, logger *slog.Logger) (FeedAdapter, io.Closer, error) {
	switch format {
	case "", config.FeedFormatAuto, config.FeedFormatJSON, config.FeedFormatYAML:
	default:
		return nil, nil, &AdapterError{
			Source:  source,
			Message: fmt.Sprintf("unknown feed format %q", format),
		}
	}

	if source == "" || source == "-" || source == StdinSource {
		return NewFeed(StdinSource, os.Stdin, format, logger), nopCloser{}, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, nil, &AdapterError{
			Source:  source,
			Message: "failed to open feed",
			Err:     err,
		}
	}
	return NewFeed(source, f, format, logger), f, nil
}

// AdapterError represents a feed-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Import reads every call from a into a slice.
func Import(ctx context.Context, a FeedAdapter) ([]model.Call, error) {
	var calls []model.Call
	err := a.Stream(ctx, func(c model.Call) error {
		calls = append(calls, c)
		return nil
	})
	return calls, err
}

// Stdin is never closed by the feed.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }
