package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

// WindowManager is the window manager capability consumed by the coordinator.
type WindowManager interface {
	// RunCommand executes a command string and reports one result per sub-command.
	RunCommand(ctx context.Context, command string) ([]schema.CommandResult, error)
	// Outputs lists outputs in the window manager's native order.
	Outputs(ctx context.Context) ([]schema.Output, error)
	// Workspaces lists every workspace with its owning output.
	Workspaces(ctx context.Context) ([]schema.Workspace, error)
	// ContainersOnWorkspace returns the window ids currently on a workspace of an output.
	ContainersOnWorkspace(ctx context.Context, output schema.OutputName, workspace schema.WorkspaceName) ([]schema.ContainerID, error)
	// FocusedContainer returns the focused window on the output's visible workspace.
	FocusedContainer(ctx context.Context, output schema.OutputName) (schema.ContainerID, bool, error)
}

// FocusUpdate is one item of a focus subscription: an event or a read error.
type FocusUpdate struct {
	Event schema.FocusEvent
	Err   error
}

// FocusSource delivers workspace change notifications. The channel is closed
// when the subscription drops.
type FocusSource interface {
	SubscribeFocus(ctx context.Context) (<-chan FocusUpdate, error)
}

// StateSink receives state events after every change.
type StateSink interface {
	OnStateEvent(event schema.StateEvent)
}

// CoordinatorDeps captures dependencies for the coordinator.
type CoordinatorDeps struct {
	WindowManager WindowManager
	Sink          StateSink
	Logger        pslog.Logger
}
