package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
)

type fakePlayer struct {
	mu          sync.Mutex
	played      []string
	tones       int
	preloaded   []string
	invalidated []string
	volume      float64
	closed      bool
	err         error
}

func (f *fakePlayer) Play(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, path)
	return f.err
}

func (f *fakePlayer) PlayTone() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tones++
	return f.err
}

func (f *fakePlayer) Preload(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preloaded = append(f.preloaded, path)
	return nil
}

func (f *fakePlayer) InvalidateCache(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, path)
}

func (f *fakePlayer) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
}

func (f *fakePlayer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakePlayer) invalidations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func writeSound(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func shown(code string) display.Event {
	return display.Event{
		Type: display.EventShown,
		Call: model.Call{ID: "c1", Offense: "Store Robbery", Code: code},
	}
}

func TestManager_ToneWithoutSoundFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	player := &fakePlayer{}

	m := NewManagerWithPlayer(cfg, player, nil)
	m.HandleEvent(shown("10-90"))

	assert.Equal(t, 1, player.tones)
	assert.Empty(t, player.played)
	assert.InDelta(t, 0.8, player.volume, 0.001)
}

func TestManager_PerCodeSounds(t *testing.T) {
	dir := t.TempDir()
	def := writeSound(t, dir, "default.wav")
	robbery := writeSound(t, dir, "robbery.wav")

	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.Sound = def
	cfg.Audio.Codes = map[string]string{
		"10-90": robbery,
		"10-71": filepath.Join(dir, "missing.wav"),
	}
	player := &fakePlayer{}
	m := NewManagerWithPlayer(cfg, player, nil)

	assert.Equal(t, robbery, m.SoundFor("10-90"))
	assert.Equal(t, def, m.SoundFor("10-71"), "missing override falls back to the default")
	assert.Equal(t, def, m.SoundFor("10-13"))

	m.HandleEvent(shown("10-90"))
	m.HandleEvent(shown("10-13"))
	assert.Equal(t, []string{robbery, def}, player.played)
	assert.Zero(t, player.tones)
}

func TestManager_OnlyShownEventsAlert(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	player := &fakePlayer{}
	m := NewManagerWithPlayer(cfg, player, nil)

	for _, typ := range []display.EventType{
		display.EventUpdated,
		display.EventExpired,
		display.EventDismissed,
		display.EventAttached,
		display.EventWaypoint,
	} {
		m.HandleEvent(display.Event{Type: typ, Call: model.Call{ID: "c1", Offense: "x"}})
	}
	assert.Zero(t, player.tones)
}

func TestManager_Disabled(t *testing.T) {
	player := &fakePlayer{}
	m := NewManagerWithPlayer(config.DefaultConfig(), player, nil)

	m.HandleEvent(shown("10-90"))
	assert.Zero(t, player.tones)
	assert.Empty(t, player.played)
}

func TestManager_PlayErrorIsLogged(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	player := &fakePlayer{err: errors.New("no audio device")}
	m := NewManagerWithPlayer(cfg, player, nil)

	assert.NotPanics(t, func() { m.HandleEvent(shown("10-90")) })
	assert.Error(t, m.PlayForCode("10-90"))
}

func TestManager_UpdateConfig(t *testing.T) {
	dir := t.TempDir()
	sound := writeSound(t, dir, "alert.ogg")
	player := &fakePlayer{}
	m := NewManagerWithPlayer(config.DefaultConfig(), player, nil)

	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.Volume = 0
	cfg.Audio.Sound = sound
	m.UpdateConfig(cfg)

	assert.Equal(t, 0.0, player.volume)
	assert.Equal(t, []string{sound}, player.invalidations())

	m.HandleEvent(shown("10-90"))
	assert.Equal(t, []string{sound}, player.played)
}

func TestManager_StartStop(t *testing.T) {
	dir := t.TempDir()
	sound := writeSound(t, dir, "alert.wav")

	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.Sound = sound
	player := &fakePlayer{}
	m := NewManagerWithPlayer(cfg, player, nil)

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{sound}, player.preloaded)
	assert.True(t, m.watcher.IsRunning())

	m.Stop()
	assert.False(t, m.watcher.IsRunning())
	assert.True(t, player.closed)
}

func TestWatcher_InvalidatesChangedFile(t *testing.T) {
	dir := t.TempDir()
	sound := writeSound(t, dir, "alert.wav")
	other := writeSound(t, dir, "other.wav")

	player := &fakePlayer{}
	w := NewWatcher(player, nil)
	w.Watch(sound)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(other, []byte("RIFF2"), 0644))
	require.NoError(t, os.WriteFile(sound, []byte("RIFF2"), 0644))

	require.Eventually(t, func() bool {
		for _, p := range player.invalidations() {
			if p == sound {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotContains(t, player.invalidations(), other)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(&fakePlayer{}, nil)
	assert.NotPanics(t, w.Stop)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestPlayer_Volume(t *testing.T) {
	p := NewPlayer(nil)
	assert.Equal(t, 1.0, p.Volume())

	p.SetVolume(1.5)
	assert.Equal(t, 1.0, p.Volume())
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.Volume())
}

func TestPlayer_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alert.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC"), 0644))

	p := NewPlayer(nil)
	err := p.Preload(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
	assert.False(t, p.Cached(path))
}

func TestVolumeToExponent(t *testing.T) {
	assert.Equal(t, -10.0, volumeToExponent(0))
	assert.InDelta(t, -1.0, volumeToExponent(0.5), 1e-9)
	assert.InDelta(t, 0.0, volumeToExponent(1), 1e-9)
}

func TestBuildTone(t *testing.T) {
	buf, err := buildTone(defaultSampleRate)
	require.NoError(t, err)
	want := defaultSampleRate.N(150*time.Millisecond)*2 + defaultSampleRate.N(60*time.Millisecond)
	assert.Equal(t, want, buf.Len())
}
