package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/model"
)

// maxLineSize bounds a single NDJSON entry.
const maxLineSize = 10 * 1024 * 1024

// Feed decodes calls from a reader in JSON, YAML or auto-detected format.
type Feed struct {
	source string
	reader io.Reader
	format string
	logger *slog.Logger
	now    func() time.Time
}

// NewFeed creates a feed over r. An empty format means auto-detect.
func NewFeed(source string, r io.Reader, format string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if format == "" {
		format = config.FeedFormatAuto
	}
	return &Feed{
		source: source,
		reader: r,
		format: format,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock sets the clock used for entries without a time.
func (f *Feed) SetClock(now func() time.Time) {
	f.now = now
}

// Name returns the source identifier.
func (f *Feed) Name() string {
	return f.source
}

// Stream decodes the feed until EOF or until ctx is done. Reads from the
// underlying reader cannot be interrupted, so on cancellation Stream returns
// immediately and the reader goroutine exits with the process or on EOF.
func (f *Feed) Stream(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	calls := make(chan model.Call)
	done := make(chan error, 1)

	go func() {
		done <- f.decode(ctx, func(c model.Call) error {
			select {
			case calls <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(calls)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-calls:
			if !ok {
				err := <-done
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if err := sink(c); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) decode(ctx context.Context, emit Sink) error {
	br := bufio.NewReader(f.reader)

	format := f.format
	if format == config.FeedFormatAuto {
		format = sniff(br)
		f.logger.Debug("detected feed format", "source", f.source, "format", format)
	}

	switch format {
	case config.FeedFormatJSON:
		return f.decodeJSON(ctx, br, emit)
	case config.FeedFormatYAML:
		return f.decodeYAML(ctx, br, emit)
	default:
		return &AdapterError{Source: f.source, Message: fmt.Sprintf("unknown feed format %q", format)}
	}
}

// sniff peeks past leading whitespace: '{' means JSON, anything else YAML.
func sniff(br *bufio.Reader) string {
	for n := 1; ; n++ {
		buf, _ := br.Peek(n)
		if len(buf) < n {
			// Empty input decodes the same either way
			return config.FeedFormatJSON
		}
		switch buf[n-1] {
		case ' ', '\t', '\r', '\n':
		case '{':
			return config.FeedFormatJSON
		default:
			return config.FeedFormatYAML
		}
	}
}

// decodeJSON reads newline-delimited JSON objects. Malformed lines are
// logged and skipped.
func (f *Feed) decodeJSON(ctx context.Context, r io.Reader, emit Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var entry feedEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			f.logger.Warn("skipping malformed feed entry",
				"source", f.source, "line", line, "error", err)
			continue
		}

		if err := f.emitEntry(entry, emit, "line", line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return &AdapterError{Source: f.source, Message: "failed to read feed", Err: err}
	}
	return nil
}

// decodeYAML reads a multi-document YAML stream. A syntax error ends the
// stream because the decoder cannot resynchronise.
func (f *Feed) decodeYAML(ctx context.Context, r io.Reader, emit Sink) error {
	dec := yaml.NewDecoder(r)

	for doc := 1; ; doc++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var entry feedEntry
		err := dec.Decode(&entry)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var typeErr *yaml.TypeError
			if errors.As(err, &typeErr) {
				f.logger.Warn("skipping malformed feed entry",
					"source", f.source, "document", doc, "error", err)
				continue
			}
			return &AdapterError{Source: f.source, Message: "failed to parse YAML feed", Err: err}
		}

		if err := f.emitEntry(entry, emit, "document", doc); err != nil {
			return err
		}
	}
}

func (f *Feed) emitEntry(entry feedEntry, emit Sink, posKey string, pos int) error {
	call, err := f.convert(entry)
	if err != nil {
		f.logger.Warn("skipping invalid feed entry",
			"source", f.source, posKey, pos, "error", err)
		return nil
	}
	return emit(call)
}

// feedEntry is one call as it appears on the wire.
type feedEntry struct {
	ID      string   `json:"id" yaml:"id"`
	Offense string   `json:"offense" yaml:"offense"`
	Code    string   `json:"code" yaml:"code"`
	Info    feedInfo `json:"info" yaml:"info"`
}

type feedInfo struct {
	Time     feedTime `json:"time" yaml:"time"`
	Location string   `json:"location" yaml:"location"`
	Plate    string   `json:"plate" yaml:"plate"`
	Vehicle  string   `json:"vehicle" yaml:"vehicle"`
}

// feedTime accepts Unix milliseconds or an RFC 3339 timestamp.
type feedTime struct {
	time.Time
}

func (t *feedTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := parseFeedTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t *feedTime) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseFeedTime(s)
	if err != nil {
		return &yaml.TypeError{Errors: []string{err.Error()}}
	}
	t.Time = parsed
	return nil
}

func parseFeedTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid call time %q: expected unix milliseconds or RFC 3339", s)
	}
	return parsed, nil
}

// convert turns a wire entry into a validated Call, minting an id and
// defaulting the time when the source omitted them.
func (f *Feed) convert(entry feedEntry) (model.Call, error) {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		var err error
		if id, err = model.NewID(); err != nil {
			return model.Call{}, err
		}
	}

	at := entry.Info.Time.Time
	if at.IsZero() {
		at = f.now()
	}

	call := model.Call{
		ID:      id,
		Offense: sanitizeString(entry.Offense),
		Code:    sanitizeString(entry.Code),
		Info: model.Info{
			Time:     at,
			Location: sanitizeString(entry.Info.Location),
			Plate:    sanitizeString(entry.Info.Plate),
			Vehicle:  sanitizeString(entry.Info.Vehicle),
		},
	}
	if call.Offense == "" {
		return model.Call{}, errors.New("call has no offense")
	}
	return call, call.Validate()
}

// sanitizeString replaces control characters with spaces and trims.
func sanitizeString(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r < 32 || r == 127 {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
