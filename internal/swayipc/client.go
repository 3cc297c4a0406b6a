// Package swayipc adapts the sway IPC library to the coordinator's window
// manager and focus source capabilities.
package swayipc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	sway "github.com/joshuarubin/go-sway"

	"pkt.systems/pslog"
	"pkt.systems/swayless/core"
	"pkt.systems/swayless/schema"
)

// ErrNoSocket reports that no IPC socket path could be resolved.
var ErrNoSocket = errors.New("swayipc: no socket configured and neither SWAYSOCK nor I3SOCK is set")

// SocketPath resolves the IPC socket: the configured path, then $SWAYSOCK,
// then $I3SOCK.
func SocketPath(configured string) (string, error) {
	for _, candidate := range []string{configured, os.Getenv("SWAYSOCK"), os.Getenv("I3SOCK")} {
		if path := strings.TrimSpace(candidate); path != "" {
			return path, nil
		}
	}
	return "", ErrNoSocket
}

// Client holds one request connection to the window manager. Event
// subscriptions use their own connection.
type Client struct {
	path string
	log  pslog.Logger
	base context.Context

	mu     sync.Mutex
	conn   sway.Client
	cancel context.CancelFunc
}

var (
	_ core.WindowManager = (*Client)(nil)
	_ core.FocusSource   = (*Client)(nil)
)

// Dial connects to the IPC socket at path. The connection outlives ctx and
// is released by Close.
func Dial(ctx context.Context, path string, logger pslog.Logger) (*Client, error) {
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	c := &Client{
		path: path,
		log:  logger.With("sway_socket", path),
		base: context.WithoutCancel(ctx),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// connectLocked returns the live connection, dialing a new one when the
// previous one was dropped.
func (c *Client) connectLocked() (sway.Client, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	connCtx, cancel := context.WithCancel(c.base)
	conn, err := sway.New(connCtx, sway.WithSocketPath(c.path))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial sway ipc %s: %w", c.path, err)
	}
	c.conn = conn
	c.cancel = cancel
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.conn = nil
	c.cancel = nil
}

// Close releases the request connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

// call runs fn on the request connection. A failed request drops the
// connection so the next call redials.
func (c *Client) call(ctx context.Context, what string, fn func(sway.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, err := c.connectLocked()
	if err != nil {
		return err
	}
	c.log.Trace("sway ipc request", "request", what)
	if err := fn(conn); err != nil {
		c.dropLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("sway ipc %s: %w", what, err)
	}
	return nil
}

// RunCommand executes a command string.
func (c *Client) RunCommand(ctx context.Context, command string) ([]schema.CommandResult, error) {
	var replies []sway.RunCommandReply
	err := c.call(ctx, "run_command", func(conn sway.Client) error {
		var err error
		replies, err = conn.RunCommand(ctx, command)
		return err
	})
	if err != nil {
		return nil, err
	}
	results := make([]schema.CommandResult, len(replies))
	for i, r := range replies {
		results[i] = schema.CommandResult{Success: r.Success, Error: r.Error}
	}
	return results, nil
}

// Outputs lists outputs in the window manager's order. The focused output is
// the one holding the focused workspace.
func (c *Client) Outputs(ctx context.Context) ([]schema.Output, error) {
	var replies []sway.Output
	var workspaces []sway.Workspace
	err := c.call(ctx, "get_outputs", func(conn sway.Client) error {
		var err error
		if replies, err = conn.GetOutputs(ctx); err != nil {
			return err
		}
		workspaces, err = conn.GetWorkspaces(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	var focused string
	for _, ws := range workspaces {
		if ws.Focused {
			focused = ws.Output
			break
		}
	}
	outputs := make([]schema.Output, len(replies))
	for i, r := range replies {
		outputs[i] = schema.Output{
			Name:    schema.OutputName(r.Name),
			Active:  r.Active,
			Focused: r.Name == focused,
		}
	}
	return outputs, nil
}

// Workspaces lists every workspace.
func (c *Client) Workspaces(ctx context.Context) ([]schema.Workspace, error) {
	var replies []sway.Workspace
	err := c.call(ctx, "get_workspaces", func(conn sway.Client) error {
		var err error
		replies, err = conn.GetWorkspaces(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	workspaces := make([]schema.Workspace, len(replies))
	for i, r := range replies {
		workspaces[i] = schema.Workspace{
			Num:     r.Num,
			Name:    schema.WorkspaceName(r.Name),
			Output:  schema.OutputName(r.Output),
			Visible: r.Visible,
			Focused: r.Focused,
		}
	}
	return workspaces, nil
}

// Tree returns the layout tree root.
func (c *Client) Tree(ctx context.Context) (*sway.Node, error) {
	var root *sway.Node
	err := c.call(ctx, "get_tree", func(conn sway.Client) error {
		var err error
		root, err = conn.GetTree(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// ContainersOnWorkspace returns the window ids on a workspace of an output.
// A workspace that does not exist has no containers.
func (c *Client) ContainersOnWorkspace(ctx context.Context, output schema.OutputName, workspace schema.WorkspaceName) ([]schema.ContainerID, error) {
	root, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	ws := FindWorkspace(root, output, workspace)
	if ws == nil {
		return nil, nil
	}
	return Windows(ws), nil
}

// FocusedContainer returns the most recently focused window on the visible
// workspace of output.
func (c *Client) FocusedContainer(ctx context.Context, output schema.OutputName) (schema.ContainerID, bool, error) {
	workspaces, err := c.Workspaces(ctx)
	if err != nil {
		return 0, false, err
	}
	var visible schema.WorkspaceName
	for _, ws := range workspaces {
		if ws.Output == output && ws.Visible {
			visible = ws.Name
			break
		}
	}
	if visible == "" {
		return 0, false, nil
	}
	root, err := c.Tree(ctx)
	if err != nil {
		return 0, false, err
	}
	ws := FindWorkspace(root, output, visible)
	if ws == nil {
		return 0, false, nil
	}
	leaf, ok := FocusedLeaf(ws)
	if !ok {
		return 0, false, nil
	}
	return schema.ContainerID(leaf.ID), true, nil
}

// focusHandler forwards workspace events; every other event is ignored.
type focusHandler struct {
	sway.EventHandler
	updates chan<- core.FocusUpdate
}

func (h focusHandler) Workspace(ctx context.Context, event sway.WorkspaceEvent) {
	update := schema.FocusEvent{Change: string(event.Change)}
	if event.Current != nil {
		update.Workspace = schema.WorkspaceName(event.Current.Name)
	}
	select {
	case h.updates <- core.FocusUpdate{Event: update}:
	case <-ctx.Done():
	}
}

// SubscribeFocus subscribes to workspace events on a dedicated connection.
// Events carry no output; the coordinator resolves it from the workspace.
// The channel closes when the connection drops or ctx is cancelled.
func (c *Client) SubscribeFocus(ctx context.Context) (<-chan core.FocusUpdate, error) {
	// The library's subscription dials $SWAYSOCK itself.
	if os.Getenv("SWAYSOCK") != c.path {
		if err := os.Setenv("SWAYSOCK", c.path); err != nil {
			return nil, fmt.Errorf("export SWAYSOCK: %w", err)
		}
	}
	updates := make(chan core.FocusUpdate, 16)
	handler := focusHandler{EventHandler: sway.NoOpEventHandler(), updates: updates}
	go func() {
		defer close(updates)
		err := sway.Subscribe(ctx, handler, sway.EventTypeWorkspace)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("subscription ended")
		}
		c.log.Warn("sway event stream closed", "err", err)
	}()
	return updates, nil
}
