// Package render draws dispatch call cards as terminal text.
//
// Everything here is a pure function of an already-resolved call, a clock
// reading and layout options. Nothing in this package affects when a call
// leaves the screen.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/callhud/internal/model"
)

// MinWidth is the narrowest card that still fits its border and padding.
const MinWidth = 20

// Options controls how a single card is drawn.
type Options struct {
	Width       int
	Selected    bool
	ShowPlate   bool
	ShowVehicle bool
	// Remaining is shown as a countdown when positive.
	Remaining time.Duration
}

// Renderer draws cards with a fixed set of styles.
type Renderer struct {
	styles Styles
}

// NewRenderer creates a renderer for the named palette.
// Unknown names fall back to the default palette.
func NewRenderer(theme string) *Renderer {
	p, ok := LookupPalette(theme)
	if !ok {
		p, _ = LookupPalette(DefaultThemeName)
	}
	return &Renderer{styles: NewStyles(p)}
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// RelativeTime formats when a call came in relative to now.
func RelativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Countdown formats the time left on screen, rounded up to whole seconds.
// Non-positive durations yield an empty string.
func Countdown(remaining time.Duration) string {
	if remaining <= 0 {
		return ""
	}
	secs := (remaining + time.Second - 1) / time.Second
	return fmt.Sprintf("%ds", secs)
}

// Card draws one call. The relative label is passed in already formatted so
// callers can share it with the cache key.
func (r *Renderer) Card(call model.Call, relative string, opts Options) string {
	width := max(opts.Width, MinWidth)
	inner := width - 4 // border and padding

	badge := r.styles.Badge.Render(call.Code)
	offense := r.styles.Offense.Render(call.Offense)
	header := badge + " " + offense
	if call.Code == "" {
		header = offense
	}

	lines := []string{header}

	timeLine := r.styles.Time.Render(relative)
	if cd := Countdown(opts.Remaining); cd != "" {
		gap := inner - lipgloss.Width(relative) - lipgloss.Width(cd)
		if gap < 1 {
			gap = 1
		}
		timeLine += strings.Repeat(" ", gap) + r.styles.Countdown.Render(cd)
	}
	lines = append(lines, timeLine)

	if call.HasLocation() {
		lines = append(lines, r.detail("Location", call.Info.Location))
	}
	if opts.ShowPlate && call.HasPlate() {
		lines = append(lines, r.detail("Plate", call.Info.Plate))
	}
	if opts.ShowVehicle && call.HasVehicle() {
		lines = append(lines, r.detail("Vehicle", call.Info.Vehicle))
	}

	lines = append(lines, r.hints())

	style := r.styles.Card
	if opts.Selected {
		style = r.styles.SelectedCard
	}
	return style.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) detail(label, value string) string {
	return r.styles.Label.Render(label+": ") + r.styles.Detail.Render(value)
}

func (r *Renderer) hints() string {
	return r.styles.Key.Render("a") + r.styles.Hint.Render(" attach  ") +
		r.styles.Key.Render("w") + r.styles.Hint.Render(" waypoint")
}

// More draws the footer for calls that did not fit on screen.
func (r *Renderer) More(n int) string {
	if n <= 0 {
		return ""
	}
	return r.styles.Footer.Render(fmt.Sprintf("+%d more", n))
}

// Empty draws the idle screen.
func (r *Renderer) Empty() string {
	return r.styles.Footer.Render("No active calls")
}
