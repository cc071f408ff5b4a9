package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
)

// PlainFormatter formats events as plain text lines.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// templateData is passed to custom templates.
type templateData struct {
	Event        string
	Call         model.Call
	RelativeTime string
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) (*PlainFormatter, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid output template: %w", err)
		}
		f.template = tmpl
	}

	return f, nil
}

// Format writes an event as a single line.
func (f *PlainFormatter) Format(w io.Writer, ev display.Event) error {
	relative := relativeTime(ev.Call.Info.Time, f.opts.Now())

	if f.template != nil {
		var sb strings.Builder
		data := templateData{
			Event:        ev.Type.String(),
			Call:         ev.Call,
			RelativeTime: relative,
		}
		if err := f.template.Execute(&sb, data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, sb.String())
		return err
	}

	var sb strings.Builder
	if f.opts.ShowTime && !ev.At.IsZero() {
		sb.WriteString(ev.At.Local().Format("15:04:05") + " ")
	}
	sb.WriteString(fmt.Sprintf("%-9s %s ", ev.Type, ev.Call.ID))
	if ev.Call.Code != "" {
		sb.WriteString("[" + ev.Call.Code + "] ")
	}
	sb.WriteString(ev.Call.Offense)
	if ev.Call.HasLocation() {
		sb.WriteString(" @ " + ev.Call.Info.Location)
	}
	if relative != "" {
		sb.WriteString(" (" + relative + ")")
	}

	_, err := fmt.Fprintln(w, sb.String())
	return err
}

// FormatField outputs a specific field from a call.
func FormatField(c model.Call, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return c.ID
	case "code":
		return c.Code
	case "offense":
		return c.Offense
	case "location":
		return c.Info.Location
	case "plate":
		return c.Info.Plate
	case "vehicle":
		return c.Info.Vehicle
	default:
		return c.Offense
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"field": FormatField,
		"truncate": func(n int, s string) string {
			if n > 3 && len(s) > n {
				return s[:n-3] + "..."
			}
			return s
		},
	}
}
