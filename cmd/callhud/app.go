package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/callhud/internal/adapter/input"
	"github.com/jmylchreest/callhud/internal/audio"
	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/core"
	"github.com/jmylchreest/callhud/internal/dbus"
	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/lifecycle"
	"github.com/jmylchreest/callhud/internal/model"
	"github.com/jmylchreest/callhud/internal/queue"
)

var feedOpts struct {
	source  string
	format  string
	filter  string
	desktop bool
	mute    bool
}

func addFeedFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&feedOpts.source, "feed", "f", "-",
		"Call feed: a file path, or - for stdin")
	cmd.Flags().StringVar(&feedOpts.format, "format", "",
		"Feed format (auto, json, yaml; default from config)")
	cmd.Flags().StringVar(&feedOpts.filter, "filter", "",
		"Only show calls matching this filter (e.g. \"code=10-90,offense~robbery\")")
	cmd.Flags().BoolVar(&feedOpts.desktop, "desktop", false,
		"Mirror calls to the desktop notification daemon")
	cmd.Flags().BoolVar(&feedOpts.mute, "mute", false,
		"Disable alert sounds")
}

// app wires the feed, queue, display manager and optional sinks.
type app struct {
	cfg     *config.Config
	queue   *queue.Queue
	manager *display.Manager
	actions *commandActions
	filter  *core.FilterExpr

	feed       input.FeedAdapter
	feedCloser io.Closer
	feedDone   chan struct{}

	desktop *dbus.Client
	mirror  *dbus.Mirror
	audio   *audio.Manager
	watcher *config.Watcher

	mu       sync.Mutex
	onConfig []func(*config.Config)
}

// newApp builds the pipeline from the loaded configuration and flags.
func newApp(cfg *config.Config) (*app, error) {
	format := feedOpts.format
	if format == "" {
		format = cfg.Feed.Format
	}

	expr := feedOpts.filter
	if expr == "" {
		expr = cfg.Feed.Filter
	}
	filter, err := core.ParseFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid feed filter: %w", err)
	}

	feed, closer, err := input.NewAdapter(feedOpts.source, format, logger)
	if err != nil {
		return nil, err
	}

	q := queue.New()
	rt := &app{
		cfg:        cfg,
		queue:      q,
		manager:    display.NewManager(q, cfg, lifecycle.NewTimerScheduler(), logger),
		actions:    newCommandActions(cfg, logger),
		filter:     filter,
		feed:       feed,
		feedCloser: closer,
		feedDone:   make(chan struct{}),
	}
	rt.manager.SetActionHandler(rt.actions)

	if cfg.Desktop.Enabled || feedOpts.desktop {
		client, err := dbus.Connect(logger)
		if err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			rt.desktop = client
			rt.mirror = dbus.NewMirror(client, cfg.Desktop.AppName, logger)
			rt.mirror.SetActionTarget(rt.manager)
			rt.manager.AddSink(rt.mirror)
		}
	}

	if feedOpts.mute {
		cfg.Audio.Enabled = false
	}
	rt.audio = audio.NewManager(cfg, logger)
	rt.manager.AddSink(rt.audio)

	return rt, nil
}

// OnConfig registers a hook run after each config reload.
func (rt *app) OnConfig(fn func(*config.Config)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.onConfig = append(rt.onConfig, fn)
}

func (rt *app) applyConfig(next *config.Config) {
	if feedOpts.mute {
		next.Audio.Enabled = false
	}

	rt.manager.UpdateConfig(next)
	rt.audio.UpdateConfig(next)
	rt.actions.UpdateConfig(next)

	rt.mu.Lock()
	hooks := append([]func(*config.Config){}, rt.onConfig...)
	rt.mu.Unlock()
	for _, fn := range hooks {
		fn(next)
	}
}

// start launches the background goroutines on g. The feed goroutine returns
// when the feed is exhausted; the HUD keeps running until ctx is done.
func (rt *app) start(ctx context.Context, g *errgroup.Group) {
	if err := rt.audio.Start(ctx); err != nil {
		logger.Warn("failed to start sound watcher", "error", err)
	}

	watcher, err := config.NewWatcher(globalOpts.configPath, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	} else {
		watcher.SetChangeCallback(rt.applyConfig)
		if err := watcher.Start(); err != nil {
			logger.Warn("config hot reload unavailable", "error", err)
			_ = watcher.Stop()
		} else {
			rt.watcher = watcher
		}
	}

	g.Go(func() error {
		return rt.manager.Run(ctx)
	})

	g.Go(func() error {
		defer close(rt.feedDone)
		logger.Info("reading call feed", "source", rt.feed.Name())
		if err := rt.feed.Stream(ctx, rt.push); err != nil {
			return fmt.Errorf("feed %s: %w", rt.feed.Name(), err)
		}
		logger.Info("call feed finished", "source", rt.feed.Name())
		return nil
	})

	if rt.desktop != nil {
		g.Go(func() error {
			if err := rt.desktop.Listen(ctx, rt.mirror); err != nil {
				logger.Warn("desktop signal listener stopped", "error", err)
			}
			return nil
		})
	}
}

// push queues a call from the feed unless the filter rejects it.
func (rt *app) push(c model.Call) error {
	if !rt.filter.Match(c) {
		logger.Debug("call filtered", "id", c.ID, "code", c.Code, "filter", rt.filter.String())
		return nil
	}
	return rt.queue.Push(c)
}

// feedFinished is closed once the feed goroutine returns.
func (rt *app) feedFinished() <-chan struct{} {
	return rt.feedDone
}

// waitDrained blocks until the queue is empty or ctx is done.
func (rt *app) waitDrained(ctx context.Context) {
	ch := rt.queue.Subscribe()
	defer rt.queue.Unsubscribe(ch)

	for rt.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// close stops controllers and releases resources. Calls still queued are
// dropped without removal events.
func (rt *app) close() {
	if rt.watcher != nil {
		_ = rt.watcher.Stop()
	}
	rt.manager.Close()
	rt.manager.Flush()
	rt.audio.Stop()
	if rt.desktop != nil {
		rt.mirror.CloseAll()
		_ = rt.desktop.Close()
	}
	_ = rt.feedCloser.Close()
	rt.queue.Close()
}
