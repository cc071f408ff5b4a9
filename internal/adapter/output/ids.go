package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/callhud/internal/display"
)

// IDsFormatter outputs just the call IDs of newly shown calls, one per line.
// Useful for piping to other commands.
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes the call ID when the call is first shown.
func (f *IDsFormatter) Format(w io.Writer, ev display.Event) error {
	if ev.Type != display.EventShown {
		return nil
	}
	_, err := fmt.Fprintln(w, ev.Call.ID)
	return err
}
