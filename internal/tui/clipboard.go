package tui

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/model"
)

var errNoClipboard = errors.New("no clipboard command available")

// copyText copies text to the system clipboard.
func copyText(text string, cfg *config.Config) error {
	cmd := detectClipboardCommand(cfg)
	if cmd == "" {
		return errNoClipboard
	}

	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return errors.New("invalid clipboard command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)

	return c.Run()
}

// detectClipboardCommand returns the clipboard command to use.
func detectClipboardCommand(cfg *config.Config) string {
	if cfg != nil && cfg.Clipboard.Command != "" {
		return cfg.Clipboard.Command
	}

	// Wayland
	if _, err := exec.LookPath("wl-copy"); err == nil {
		return "wl-copy"
	}

	// X11
	if _, err := exec.LookPath("xclip"); err == nil {
		return "xclip -selection clipboard"
	}
	if _, err := exec.LookPath("xsel"); err == nil {
		return "xsel --clipboard --input"
	}

	return ""
}

// callSummary is the one-line text copied for a call.
func callSummary(c model.Call) string {
	var b strings.Builder
	if c.Code != "" {
		b.WriteString(c.Code)
		b.WriteString(" ")
	}
	b.WriteString(c.Offense)
	if c.HasLocation() {
		b.WriteString(" @ ")
		b.WriteString(c.Info.Location)
	}
	if c.HasPlate() {
		b.WriteString(" plate ")
		b.WriteString(c.Info.Plate)
	}
	if c.HasVehicle() {
		b.WriteString(" (")
		b.WriteString(c.Info.Vehicle)
		b.WriteString(")")
	}
	return b.String()
}
