package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/model"
)

// commandActions runs the configured shell commands for attach and
// waypoint. The call is exported to the command's environment.
type commandActions struct {
	mu     sync.RWMutex
	cfg    config.ActionsConfig
	logger *slog.Logger
}

func newCommandActions(cfg *config.Config, logger *slog.Logger) *commandActions {
	return &commandActions{cfg: cfg.Actions, logger: logger}
}

// UpdateConfig swaps the configured commands.
func (a *commandActions) UpdateConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg.Actions
}

// Attach implements display.ActionHandler.
func (a *commandActions) Attach(call model.Call) error {
	a.mu.RLock()
	command := a.cfg.Attach
	a.mu.RUnlock()
	return a.run("attach", command, call)
}

// Waypoint implements display.ActionHandler.
func (a *commandActions) Waypoint(call model.Call) error {
	a.mu.RLock()
	command := a.cfg.Waypoint
	a.mu.RUnlock()
	return a.run("waypoint", command, call)
}

func (a *commandActions) run(action, command string, call model.Call) error {
	if command == "" {
		a.logger.Info("action requested", "action", action, "id", call.ID, "code", call.Code)
		return nil
	}

	a.mu.RLock()
	timeout := a.cfg.Timeout.Duration()
	a.mu.RUnlock()
	if timeout <= 0 {
		timeout = config.DefaultActionTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), callEnv(action, call)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s command failed: %w: %s", action, err, out)
	}

	a.logger.Debug("action command finished", "action", action, "id", call.ID)
	return nil
}

// callEnv returns the environment describing call.
func callEnv(action string, call model.Call) []string {
	env := []string{
		"CALLHUD_ACTION=" + action,
		"CALLHUD_ID=" + call.ID,
		"CALLHUD_CODE=" + call.Code,
		"CALLHUD_OFFENSE=" + call.Offense,
		"CALLHUD_LOCATION=" + call.Info.Location,
		"CALLHUD_PLATE=" + call.Info.Plate,
		"CALLHUD_VEHICLE=" + call.Info.Vehicle,
	}
	if !call.Info.Time.IsZero() {
		env = append(env, fmt.Sprintf("CALLHUD_TIME=%d", call.Info.Time.UnixMilli()))
	}
	return env
}
