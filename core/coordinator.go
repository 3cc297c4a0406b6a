package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/swayless/internal/logx"
	"pkt.systems/swayless/schema"
)

// coordinator implements Coordinator.
type coordinator struct {
	cfg     schema.CoordinatorConfig
	wm      WindowManager
	sink    StateSink
	logger  pslog.Logger
	mu      sync.Mutex
	outputs map[schema.OutputName]*tagState
}

// NewCoordinator constructs the output coordinator.
func NewCoordinator(cfg schema.CoordinatorConfig, deps CoordinatorDeps) (Coordinator, error) {
	normalized, err := schema.NormalizeCoordinatorConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.WindowManager == nil {
		return nil, errors.New("window manager is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &coordinator{
		cfg:     normalized,
		wm:      deps.WindowManager,
		sink:    deps.Sink,
		logger:  logger,
		outputs: make(map[schema.OutputName]*tagState),
	}, nil
}

func (c *coordinator) commander(ctx context.Context) commander {
	return commander{wm: c.wm, log: c.log(ctx)}
}

func (c *coordinator) log(ctx context.Context) pslog.Logger {
	if ctx == nil {
		return c.logger
	}
	return pslog.Ctx(ctx)
}

// Init creates one tag state per active output. Outputs are focused in
// reverse listing order so the first listed output ends up focused.
func (c *coordinator) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	outputs, err := c.wm.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	if len(outputs) == 0 {
		return schema.ErrNoOutputs
	}
	cmd := c.commander(ctx)
	for i := len(outputs) - 1; i >= 0; i-- {
		out := outputs[i]
		if !out.Active {
			continue
		}
		st := c.stateFor(out.Name, i)
		logx.WithOutput(cmd.log, out.Name).Info("output init", "ordinal", i, "tag", c.cfg.InitialTag, "workspace", st.workspace(c.cfg.InitialTag))
		if c.cfg.SkipInitialFocus {
			continue
		}
		if err := runFatal(ctx, cmd, focusOutputCommand(out.Name)); err != nil {
			return err
		}
		if err := runFatal(ctx, cmd, focusWorkspaceCommand(st.workspace(c.cfg.InitialTag))); err != nil {
			return err
		}
	}
	c.publish(schema.ReasonInit, "")
	return nil
}

// runFatal returns transport failures only; soft failures are already logged.
func runFatal(ctx context.Context, cmd commander, command string) error {
	err := cmd.run(ctx, command)
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return nil
	}
	return err
}

func (c *coordinator) FocusTag(ctx context.Context, tag schema.Tag) error {
	tag, err := schema.NormalizeTag(tag)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.currentOutput(ctx)
	if err != nil {
		return err
	}
	if err := st.switchTo(ctx, c.commander(ctx), tag); err != nil {
		return err
	}
	c.publish(schema.ReasonCommand, schema.VerbFocus)
	return nil
}

func (c *coordinator) AltTab(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.currentOutput(ctx)
	if err != nil {
		return err
	}
	if err := st.toggleToPrevious(ctx, c.commander(ctx)); err != nil {
		return err
	}
	c.publish(schema.ReasonCommand, schema.VerbAltTab)
	return nil
}

func (c *coordinator) FocusTagAllOutputs(ctx context.Context, tag schema.Tag) error {
	tag, err := schema.NormalizeTag(tag)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	outputs, err := c.wm.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	current := focusedIndex(outputs)
	if current < 0 {
		return schema.ErrNoFocusedOutput
	}
	cmd := c.commander(ctx)
	var errs []error
	for i, out := range outputs {
		if !out.Active {
			continue
		}
		if err := cmd.run(ctx, focusOutputCommand(out.Name)); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.stateFor(out.Name, i).switchTo(ctx, cmd, tag); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cmd.run(ctx, focusOutputCommand(outputs[current].Name)); err != nil {
		errs = append(errs, err)
	}
	c.publish(schema.ReasonCommand, schema.VerbFocusAllOutputs)
	return errors.Join(errs...)
}

func (c *coordinator) MoveContainerToTag(ctx context.Context, tag schema.Tag) error {
	tag, err := schema.NormalizeTag(tag)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.currentOutput(ctx)
	if err != nil {
		return err
	}
	id, ok, err := c.wm.FocusedContainer(ctx, st.name)
	if err != nil {
		return fmt.Errorf("focused container: %w", err)
	}
	if !ok {
		return schema.ErrNoFocusedContainer
	}
	cmd := c.commander(ctx)
	if st.isBorrowing(tag) {
		// The owner's windows are parked here: joining them means staying put.
		st.adopt(tag, id)
		err = cmd.run(ctx, moveContainerCommand(id, st.workspace(st.focused())))
	} else {
		st.unborrow(id)
		err = cmd.run(ctx, moveContainerCommand(id, st.workspace(tag)))
	}
	c.publish(schema.ReasonCommand, schema.VerbMove)
	return err
}

func (c *coordinator) MoveContainerToOutput(ctx context.Context, dir schema.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	outputs, err := c.wm.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	current := focusedIndex(outputs)
	if current < 0 {
		return schema.ErrNoFocusedOutput
	}
	target := outputs[adjacentIndex(current, len(outputs), dir)]
	workspaces, err := c.wm.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}
	visible, ok := visibleWorkspace(workspaces, target.Name)
	if !ok {
		return fmt.Errorf("%w %s", schema.ErrNoVisibleWorkspace, target.Name)
	}
	source := c.stateFor(outputs[current].Name, current)
	if id, ok, err := c.wm.FocusedContainer(ctx, source.name); err == nil && ok {
		source.unborrow(id)
	}
	cmd := c.commander(ctx)
	logx.WithOutput(cmd.log, source.name).Debug("move container to output", "direction", dir, "target", target.Name, "workspace", visible.Name)
	if err := cmd.run(ctx, moveFocusedCommand(visible.Name)); err != nil {
		return err
	}
	if err := cmd.run(ctx, focusWorkspaceCommand(visible.Name)); err != nil {
		return err
	}
	verb := schema.VerbNextOutput
	if dir == schema.DirectionPrev {
		verb = schema.VerbPrevOutput
	}
	c.publish(schema.ReasonCommand, verb)
	return nil
}

func (c *coordinator) BringTagHere(ctx context.Context, tag schema.Tag) error {
	tag, err := schema.NormalizeTag(tag)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.currentOutput(ctx)
	if err != nil {
		return err
	}
	cmd := c.commander(ctx)
	log := logx.WithTag(logx.WithOutput(cmd.log, st.name), tag)
	if st.returnContainers(ctx, cmd, tag) {
		log.Info("returned borrowed containers")
		c.publish(schema.ReasonCommand, schema.VerbBring)
		return nil
	}
	if tag == st.focused() {
		log.Debug("bring skipped, tag already focused")
		return nil
	}
	ids, err := c.wm.ContainersOnWorkspace(ctx, st.name, st.workspace(tag))
	if err != nil {
		return fmt.Errorf("containers on %s: %w", st.workspace(tag), err)
	}
	if len(ids) == 0 {
		log.Debug("bring skipped, nothing to borrow")
		return nil
	}
	if err := st.borrowContainersFrom(ctx, cmd, tag, ids); err != nil {
		return err
	}
	log.Info("borrowed containers", "count", len(ids))
	c.publish(schema.ReasonCommand, schema.VerbBring)
	return nil
}

func (c *coordinator) Snapshot(ctx context.Context) []schema.OutputSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *coordinator) ObserveFocus(ctx context.Context, event schema.FocusEvent) error {
	if event.Workspace == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	outputs, err := c.wm.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	name := event.Output
	if name == "" {
		workspaces, err := c.wm.Workspaces(ctx)
		if err != nil {
			return fmt.Errorf("list workspaces: %w", err)
		}
		for _, ws := range workspaces {
			if ws.Name == event.Workspace {
				name = ws.Output
				break
			}
		}
	}
	if name == "" {
		// Workspace already gone; its suffix still names the output.
		if _, ordinal, ok := ParseWorkspaceName(event.Workspace); ok && ordinal < len(outputs) {
			name = outputs[ordinal].Name
		}
	}
	idx := slices.IndexFunc(outputs, func(o schema.Output) bool { return o.Name == name })
	if idx < 0 {
		c.log(ctx).Debug("focus event for unknown output", "workspace", event.Workspace, "output", name)
		return nil
	}
	tag, ok := TagForOrdinal(event.Workspace, idx)
	if !ok {
		c.log(ctx).Debug("focus event for foreign workspace", "workspace", event.Workspace, "output", name)
		return nil
	}
	if c.stateFor(name, idx).observeFocus(tag) {
		logx.WithTag(logx.WithOutput(c.log(ctx), name), tag).Debug("focus observed")
		c.publish(schema.ReasonFocus, "")
	}
	return nil
}

// currentOutput resolves the focused output and its tag state.
func (c *coordinator) currentOutput(ctx context.Context) (*tagState, error) {
	outputs, err := c.wm.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	idx := focusedIndex(outputs)
	if idx < 0 {
		return nil, schema.ErrNoFocusedOutput
	}
	return c.stateFor(outputs[idx].Name, idx), nil
}

// stateFor returns the tag state for an output, creating it for outputs
// that appeared after startup, and refreshes its ordinal.
func (c *coordinator) stateFor(name schema.OutputName, ordinal int) *tagState {
	st, ok := c.outputs[name]
	if !ok {
		st = newTagState(name, ordinal, c.cfg.InitialTag)
		c.outputs[name] = st
		return st
	}
	if st.ordinal != ordinal {
		if st.hosting() {
			c.logger.Warn("output ordinal changed while hosting borrowed containers", "output", name, "from", st.ordinal, "to", ordinal)
		}
		st.ordinal = ordinal
	}
	return st
}

func (c *coordinator) snapshotLocked() []schema.OutputSnapshot {
	snaps := make([]schema.OutputSnapshot, 0, len(c.outputs))
	for _, st := range c.outputs {
		snaps = append(snaps, st.snapshot())
	}
	slices.SortFunc(snaps, func(a, b schema.OutputSnapshot) int {
		if a.Ordinal != b.Ordinal {
			return a.Ordinal - b.Ordinal
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return snaps
}

func (c *coordinator) publish(reason schema.StateReason, verb schema.Verb) {
	if c.sink == nil {
		return
	}
	c.sink.OnStateEvent(schema.StateEvent{Reason: reason, Verb: verb, Outputs: c.snapshotLocked()})
}

func focusedIndex(outputs []schema.Output) int {
	return slices.IndexFunc(outputs, func(o schema.Output) bool { return o.Focused })
}

// adjacentIndex walks the output ring in either direction.
func adjacentIndex(current, n int, dir schema.Direction) int {
	if dir == schema.DirectionPrev {
		return (current + n - 1) % n
	}
	return (current + 1) % n
}

func visibleWorkspace(workspaces []schema.Workspace, output schema.OutputName) (schema.Workspace, bool) {
	for _, ws := range workspaces {
		if ws.Output == output && ws.Visible {
			return ws, true
		}
	}
	return schema.Workspace{}, false
}
