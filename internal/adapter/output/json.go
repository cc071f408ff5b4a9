package output

import (
	"encoding/json"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/callhud/internal/display"
)

// eventRecord is the structured form of a display event.
type eventRecord struct {
	Event    string    `json:"event" yaml:"event"`
	At       time.Time `json:"at" yaml:"at"`
	ID       string    `json:"id" yaml:"id"`
	Code     string    `json:"code,omitempty" yaml:"code,omitempty"`
	Offense  string    `json:"offense" yaml:"offense"`
	Time     time.Time `json:"time" yaml:"time"`
	Location string    `json:"location,omitempty" yaml:"location,omitempty"`
	Plate    string    `json:"plate,omitempty" yaml:"plate,omitempty"`
	Vehicle  string    `json:"vehicle,omitempty" yaml:"vehicle,omitempty"`
}

func newEventRecord(ev display.Event) eventRecord {
	return eventRecord{
		Event:    ev.Type.String(),
		At:       ev.At.UTC(),
		ID:       ev.Call.ID,
		Code:     ev.Call.Code,
		Offense:  ev.Call.Offense,
		Time:     ev.Call.Info.Time.UTC(),
		Location: ev.Call.Info.Location,
		Plate:    ev.Call.Info.Plate,
		Vehicle:  ev.Call.Info.Vehicle,
	}
}

// JSONFormatter writes one JSON object per line.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON lines formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the event as a single JSON line.
func (f *JSONFormatter) Format(w io.Writer, ev display.Event) error {
	return json.NewEncoder(w).Encode(newEventRecord(ev))
}

// YAMLFormatter writes one YAML document per event.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML stream formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes the event as a YAML document preceded by a separator.
func (f *YAMLFormatter) Format(w io.Writer, ev display.Event) error {
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newEventRecord(ev)); err != nil {
		return err
	}
	return enc.Close()
}
