package render

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// DefaultThemeName is the palette used when none is configured.
const DefaultThemeName = "default"

// Palette is a named set of card colours.
type Palette struct {
	Name      string
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Accent    lipgloss.Color
	BadgeText lipgloss.Color
	BadgeBg   lipgloss.Color
	Border    lipgloss.Color
	Selected  lipgloss.Color
	Key       lipgloss.Color
}

var bundledPalettes = map[string]Palette{
	"default": {
		Name:      "default",
		Text:      lipgloss.Color("15"),
		Muted:     lipgloss.Color("8"),
		Accent:    lipgloss.Color("12"),
		BadgeText: lipgloss.Color("15"),
		BadgeBg:   lipgloss.Color("1"),
		Border:    lipgloss.Color("8"),
		Selected:  lipgloss.Color("11"),
		Key:       lipgloss.Color("10"),
	},
	"minimal": {
		Name:      "minimal",
		Text:      lipgloss.Color("7"),
		Muted:     lipgloss.Color("8"),
		Accent:    lipgloss.Color("7"),
		BadgeText: lipgloss.Color("0"),
		BadgeBg:   lipgloss.Color("7"),
		Border:    lipgloss.Color("8"),
		Selected:  lipgloss.Color("15"),
		Key:       lipgloss.Color("7"),
	},
	"catppuccin": {
		Name:      "catppuccin",
		Text:      lipgloss.Color("#cdd6f4"),
		Muted:     lipgloss.Color("#6c7086"),
		Accent:    lipgloss.Color("#89b4fa"),
		BadgeText: lipgloss.Color("#1e1e2e"),
		BadgeBg:   lipgloss.Color("#f38ba8"),
		Border:    lipgloss.Color("#45475a"),
		Selected:  lipgloss.Color("#f9e2af"),
		Key:       lipgloss.Color("#a6e3a1"),
	},
}

// LookupPalette returns a bundled palette by name.
func LookupPalette(name string) (Palette, bool) {
	p, ok := bundledPalettes[name]
	return p, ok
}

// BundledThemes lists the names of all bundled palettes.
func BundledThemes() []string {
	names := make([]string, 0, len(bundledPalettes))
	for name := range bundledPalettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Styles are the lipgloss styles derived from a palette.
type Styles struct {
	Card         lipgloss.Style
	SelectedCard lipgloss.Style
	Badge        lipgloss.Style
	Offense      lipgloss.Style
	Time         lipgloss.Style
	Countdown    lipgloss.Style
	Detail       lipgloss.Style
	Label        lipgloss.Style
	Key          lipgloss.Style
	Hint         lipgloss.Style
	Footer       lipgloss.Style
}

// NewStyles builds card styles from p.
func NewStyles(p Palette) Styles {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)

	return Styles{
		Card:         card,
		SelectedCard: card.BorderForeground(p.Selected),
		Badge: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.BadgeText).
			Background(p.BadgeBg).
			Padding(0, 1),
		Offense:   lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Time:      lipgloss.NewStyle().Foreground(p.Muted),
		Countdown: lipgloss.NewStyle().Foreground(p.Selected),
		Detail:    lipgloss.NewStyle().Foreground(p.Text),
		Label:     lipgloss.NewStyle().Foreground(p.Muted),
		Key:       lipgloss.NewStyle().Foreground(p.Key),
		Hint:      lipgloss.NewStyle().Foreground(p.Muted),
		Footer:    lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
	}
}
