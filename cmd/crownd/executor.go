package main

import (
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Action Executor
// ============================================================================
// The executor launches resolved actions as external processes. Launch never
// blocks on completion: a slow or hung action must not stall classification
// of the next crown event. Actions are started in the order their events were
// classified; among themselves, in-flight actions are unordered.
//
// Process spawning is isolated behind spawnFunc so tests can substitute a
// recorder instead of forking real processes.
// ============================================================================

// spawnHandle waits for a started action and returns its exit error.
type spawnHandle func() error

// spawnFunc starts an action and returns a handle to await it.
type spawnFunc func(desc ActionDescriptor) (spawnHandle, error)

// execSpawn is the production spawnFunc. Stdout/stderr are inherited, not
// consumed; redirection is the user's business.
func execSpawn(desc ActionDescriptor) (spawnHandle, error) {
	cmd := exec.Command(desc.Command, desc.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(desc.Env) > 0 {
		env := os.Environ()
		for k, v := range desc.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

// Executor runs actions according to their execution policy.
type Executor struct {
	logger  *slog.Logger
	spawn   spawnFunc
	tracked *errgroup.Group
}

func newExecutor(logger *slog.Logger, spawn spawnFunc) *Executor {
	if spawn == nil {
		spawn = execSpawn
	}
	return &Executor{
		logger:  logger,
		spawn:   spawn,
		tracked: new(errgroup.Group),
	}
}

// Launch starts one action. Spawn failures are logged for both policies;
// completion is awaited (and failures logged) only for tracked actions.
func (e *Executor) Launch(desc ActionDescriptor) {
	wait, err := e.spawn(desc)
	if err != nil {
		e.logger.Error("action spawn failed",
			"action", desc.Name, "command", desc.Command, "error", err)
		return
	}

	switch desc.Policy {
	case PolicyTracked:
		e.tracked.Go(func() error {
			if err := wait(); err != nil {
				e.logger.Error("action failed",
					"action", desc.Name, "command", desc.Command, "error", err)
			} else {
				e.logger.Debug("action completed", "action", desc.Name)
			}
			return nil
		})

	default:
		// Fire-and-forget: reap in the background so the child does not
		// linger as a zombie; exit status is deliberately not tracked.
		go func() { _ = wait() }()
	}
}

// Drain waits for tracked actions to finish, up to the grace period.
// It reports whether everything completed in time. Fire-and-forget
// processes are never waited for.
func (e *Executor) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		_ = e.tracked.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
