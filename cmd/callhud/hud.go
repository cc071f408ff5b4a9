package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/callhud/internal/adapter/input"
	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/tui"
)

var hudCmd = &cobra.Command{
	Use:         "hud",
	Annotations: map[string]string{annotationHUD: "true"},
	Short:       "Launch the interactive call HUD",
	Long: `Launch the terminal HUD showing active dispatch calls.

Each call is shown as a card and expires after the configured timeout
(5s by default). Updating a call in the feed refreshes its card without
restarting the timer.

Key bindings:
  j/k, ↑/↓    Select call
  a, enter    Attach to call
  w           Add waypoint
  d, x        Dismiss call
  c           Copy call to clipboard
  ?           Show help
  q           Quit`,
	RunE: runHUD,
}

func init() {
	rootCmd.AddCommand(hudCmd)
	addFeedFlags(hudCmd)
}

func runHUD(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := newApp(getConfig())
	if err != nil {
		return err
	}
	defer rt.close()

	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if rt.feed.Name() == input.StdinSource {
		// Keys come from the terminal while calls arrive on stdin
		programOpts = append(programOpts, tea.WithInputTTY())
	}

	g, gctx := errgroup.WithContext(ctx)

	program := tui.NewProgram(gctx, tui.Options{
		Config:  rt.cfg,
		Queue:   rt.queue,
		Manager: rt.manager,
	}, programOpts...)

	rt.OnConfig(func(c *config.Config) {
		program.Send(tui.ConfigMsg{Config: c})
	})

	rt.start(gctx, g)

	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}
