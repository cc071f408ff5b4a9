package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/callhud/internal/adapter/output"
	"github.com/jmylchreest/callhud/internal/display"
)

var watchOpts struct {
	output   string
	template string
	events   []string
	follow   bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the call lifecycle without a HUD",
	Long: `Run the call lifecycle headless and print lifecycle events.

Calls are read from the feed exactly as the HUD would, and every event
(shown, updated, expired, dismissed, attached, waypoint) is written to
stdout. Desktop notifications and alert sounds work as in the HUD.

Without --follow, watch exits once the feed is exhausted and every call
has left the queue.

Examples:
  # Print events for a recorded feed
  callhud watch --feed calls.jsonl

  # Mirror a live feed to the desktop and log closures as JSON
  tail -f calls.jsonl | callhud watch --desktop --follow -o json --events expired,dismissed

  # Custom line format
  callhud watch -t '{{.Event}} {{.Call.Code}} {{.RelativeTime}}'`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addFeedFlags(watchCmd)

	watchCmd.Flags().StringVarP(&watchOpts.output, "output", "o", "plain",
		"Output format (plain, json, yaml, ids)")
	watchCmd.Flags().StringVarP(&watchOpts.template, "template", "t", "",
		"Go template for plain output")
	watchCmd.Flags().StringSliceVar(&watchOpts.events, "events", nil,
		"Only print these event types (comma separated)")
	watchCmd.Flags().BoolVar(&watchOpts.follow, "follow", false,
		"Keep running after the feed ends")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := output.DefaultFormatterOptions()
	opts.Template = watchOpts.template
	formatter, err := output.NewFormatter(output.FormatType(watchOpts.output), opts)
	if err != nil {
		return err
	}

	rt, err := newApp(getConfig())
	if err != nil {
		return err
	}
	defer rt.close()

	writer := output.NewWriter(cmd.OutOrStdout(), formatter, logger)
	if len(watchOpts.events) > 0 {
		writer.SetFilter(eventFilter(watchOpts.events))
	}
	rt.manager.AddSink(writer)
	rt.manager.AddSink(display.SinkFunc(logEvent))

	g, gctx := errgroup.WithContext(ctx)
	rt.start(gctx, g)

	// Once the feed ends, let the remaining calls play out before exiting
	g.Go(func() error {
		select {
		case <-rt.feedFinished():
		case <-gctx.Done():
			return nil
		}
		if watchOpts.follow {
			return nil
		}
		rt.waitDrained(gctx)
		cancel()
		return nil
	})

	return g.Wait()
}

// eventFilter keeps the named event types.
func eventFilter(names []string) func(display.EventType) bool {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return func(t display.EventType) bool {
		return keep[t.String()]
	}
}

// logEvent records lifecycle events in the log.
func logEvent(ev display.Event) {
	level := slog.LevelDebug
	if ev.Type == display.EventShown || ev.Type.Closed() {
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, "call "+ev.Type.String(),
		"id", ev.Call.ID,
		"code", ev.Call.Code,
		"offense", ev.Call.Offense,
	)
}
