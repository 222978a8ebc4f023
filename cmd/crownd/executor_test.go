package main

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSpawner records launched actions without forking processes.
type fakeSpawner struct {
	mu       sync.Mutex
	launched []ActionDescriptor

	spawnErr error
	waitErr  error
	block    chan struct{} // non-nil: wait blocks until closed
}

func (f *fakeSpawner) spawn(desc ActionDescriptor) (spawnHandle, error) {
	f.mu.Lock()
	f.launched = append(f.launched, desc)
	f.mu.Unlock()

	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	return func() error {
		if f.block != nil {
			<-f.block
		}
		return f.waitErr
	}, nil
}

func (f *fakeSpawner) launchedActions() []ActionDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ActionDescriptor, len(f.launched))
	copy(out, f.launched)
	return out
}

func TestExecutor_FireAndForget(t *testing.T) {
	fs := &fakeSpawner{}
	e := newExecutor(testLogger(), fs.spawn)

	e.Launch(ActionDescriptor{
		Name:    "volume-up",
		Command: "pactl",
		Args:    []string{"set-sink-volume", "@DEFAULT_SINK@", "+2%"},
		Policy:  PolicyFireAndForget,
	})

	launched := fs.launchedActions()
	if len(launched) != 1 {
		t.Fatalf("expected 1 launch, got %d", len(launched))
	}
	if launched[0].Command != "pactl" || len(launched[0].Args) != 3 {
		t.Errorf("unexpected launched action: %#v", launched[0])
	}

	// Fire-and-forget never holds up Drain.
	if !e.Drain(10 * time.Millisecond) {
		t.Error("expected Drain to complete with no tracked actions")
	}
}

func TestExecutor_TrackedDrain(t *testing.T) {
	fs := &fakeSpawner{block: make(chan struct{})}
	e := newExecutor(testLogger(), fs.spawn)

	e.Launch(ActionDescriptor{Name: "sync", Command: "sync", Policy: PolicyTracked})

	// Still running: the grace period must expire.
	if e.Drain(20 * time.Millisecond) {
		t.Fatal("expected Drain to time out while the tracked action runs")
	}

	close(fs.block)
	if !e.Drain(time.Second) {
		t.Fatal("expected Drain to complete after the tracked action finished")
	}
}

func TestExecutor_SpawnFailure(t *testing.T) {
	fs := &fakeSpawner{spawnErr: errors.New("no such file or directory")}
	e := newExecutor(testLogger(), fs.spawn)

	// Must not panic and must not register a tracked waiter.
	e.Launch(ActionDescriptor{Name: "broken", Command: "/nonexistent", Policy: PolicyTracked})

	if !e.Drain(10 * time.Millisecond) {
		t.Error("expected Drain to complete after a failed spawn")
	}
}

func TestExecutor_TrackedFailureDoesNotPropagate(t *testing.T) {
	fs := &fakeSpawner{waitErr: errors.New("exit status 1")}
	e := newExecutor(testLogger(), fs.spawn)

	e.Launch(ActionDescriptor{Name: "flaky", Command: "false", Policy: PolicyTracked})

	// A failing action is logged, not fatal; Drain still reports success.
	if !e.Drain(time.Second) {
		t.Error("expected Drain to complete despite the action failure")
	}
}
