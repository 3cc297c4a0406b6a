package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

type fakeWM struct {
	mu         sync.Mutex
	outputs    []schema.Output
	workspaces []schema.Workspace
	containers map[schema.WorkspaceName][]schema.ContainerID
	focusedCon map[schema.OutputName]schema.ContainerID
	fail       map[string]string
	commands   []string
}

func newFakeWM(outputs ...schema.OutputName) *fakeWM {
	wm := &fakeWM{
		containers: make(map[schema.WorkspaceName][]schema.ContainerID),
		focusedCon: make(map[schema.OutputName]schema.ContainerID),
		fail:       make(map[string]string),
	}
	for i, name := range outputs {
		wm.outputs = append(wm.outputs, schema.Output{Name: name, Active: true, Focused: i == 0})
	}
	return wm
}

func (f *fakeWM) RunCommand(_ context.Context, command string) ([]schema.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if reason, ok := f.fail[command]; ok {
		return []schema.CommandResult{{Success: false, Error: reason}}, nil
	}
	return []schema.CommandResult{{Success: true}}, nil
}

func (f *fakeWM) Outputs(context.Context) ([]schema.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Output(nil), f.outputs...), nil
}

func (f *fakeWM) Workspaces(context.Context) ([]schema.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Workspace(nil), f.workspaces...), nil
}

func (f *fakeWM) ContainersOnWorkspace(_ context.Context, _ schema.OutputName, workspace schema.WorkspaceName) ([]schema.ContainerID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.ContainerID(nil), f.containers[workspace]...), nil
}

func (f *fakeWM) FocusedContainer(_ context.Context, output schema.OutputName) (schema.ContainerID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.focusedCon[output]
	return id, ok, nil
}

func (f *fakeWM) focus(name schema.OutputName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.outputs {
		f.outputs[i].Focused = f.outputs[i].Name == name
	}
}

func (f *fakeWM) takeCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.commands
	f.commands = nil
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.StateEvent
}

func (s *recordingSink) OnStateEvent(event schema.StateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []schema.StateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.StateEvent(nil), s.events...)
}

func testCommander(wm WindowManager) commander {
	return commander{wm: wm, log: pslog.Ctx(context.Background())}
}

func newTestCoordinator(t *testing.T, wm *fakeWM, sink StateSink) *coordinator {
	t.Helper()
	coord, err := NewCoordinator(schema.CoordinatorConfig{}, CoordinatorDeps{WindowManager: wm, Sink: sink})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return coord.(*coordinator)
}

func expectCommands(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d commands, got %d:\n%s", len(want), len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func snapshotFor(t *testing.T, snaps []schema.OutputSnapshot, name schema.OutputName) schema.OutputSnapshot {
	t.Helper()
	for _, snap := range snaps {
		if snap.Name == name {
			return snap
		}
	}
	t.Fatalf("no snapshot for output %q in %+v", name, snaps)
	return schema.OutputSnapshot{}
}
