package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
)

func testCall() model.Call {
	return model.Call{
		ID:      "c1",
		Offense: "Store Robbery",
		Code:    "10-90",
		Info: model.Info{
			Time:     time.UnixMilli(1760875200000),
			Location: "Innocence Blvd",
		},
	}
}

func TestEventFilter(t *testing.T) {
	keep := eventFilter([]string{"Expired", " dismissed "})

	assert.True(t, keep(display.EventExpired))
	assert.True(t, keep(display.EventDismissed))
	assert.False(t, keep(display.EventShown))
	assert.False(t, keep(display.EventAttached))
}

func TestCallEnv(t *testing.T) {
	env := callEnv("attach", testCall())

	assert.Contains(t, env, "CALLHUD_ACTION=attach")
	assert.Contains(t, env, "CALLHUD_ID=c1")
	assert.Contains(t, env, "CALLHUD_CODE=10-90")
	assert.Contains(t, env, "CALLHUD_LOCATION=Innocence Blvd")
	assert.Contains(t, env, "CALLHUD_PLATE=")
	assert.Contains(t, env, "CALLHUD_TIME=1760875200000")

	noTime := testCall()
	noTime.Info.Time = time.Time{}
	assert.NotContains(t, callEnv("waypoint", noTime), "CALLHUD_TIME=0")
}

func TestCommandActions(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := filepath.Join(t.TempDir(), "out")

	cfg := config.DefaultConfig()
	cfg.Actions.Attach = `printf '%s %s' "$CALLHUD_ACTION" "$CALLHUD_ID" > ` + out
	a := newCommandActions(cfg, quiet)

	require.NoError(t, a.Attach(testCall()))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "attach c1", string(data))

	// No command configured only logs
	assert.NoError(t, a.Waypoint(testCall()))

	next := config.DefaultConfig()
	next.Actions.Waypoint = "echo boom >&2; exit 3"
	a.UpdateConfig(next)

	err = a.Waypoint(testCall())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waypoint command failed")
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, a.Attach(testCall()), "attach command was cleared by reload")
}

func TestOwnsTerminal(t *testing.T) {
	assert.True(t, ownsTerminal(rootCmd))
	assert.True(t, ownsTerminal(hudCmd))
	assert.False(t, ownsTerminal(watchCmd))
	assert.False(t, ownsTerminal(configShowCmd))
}

func TestSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"hud", "watch", "config"} {
		assert.True(t, names[want], want)
	}

	for _, c := range []string{"feed", "format", "filter", "desktop", "mute"} {
		assert.NotNil(t, hudCmd.Flags().Lookup(c), c)
		assert.NotNil(t, watchCmd.Flags().Lookup(c), c)
	}
}
