package core

import (
	"context"

	"pkt.systems/swayless/schema"
)

// Coordinator routes tag operations to the focused output's tag state.
// Every method holds the coordinator lock for its full duration.
type Coordinator interface {
	Init(ctx context.Context) error
	FocusTag(ctx context.Context, tag schema.Tag) error
	FocusTagAllOutputs(ctx context.Context, tag schema.Tag) error
	MoveContainerToTag(ctx context.Context, tag schema.Tag) error
	MoveContainerToOutput(ctx context.Context, dir schema.Direction) error
	BringTagHere(ctx context.Context, tag schema.Tag) error
	AltTab(ctx context.Context) error
	Snapshot(ctx context.Context) []schema.OutputSnapshot
	// ObserveFocus updates bookkeeping for a focus change made outside the
	// coordinator. It never issues window manager commands.
	ObserveFocus(ctx context.Context, event schema.FocusEvent) error
}
