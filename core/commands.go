package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

// CommandError reports window manager sub-commands that did not succeed.
type CommandError struct {
	Command string
	Reasons []string
}

func (e *CommandError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("command %q failed", e.Command)
	}
	return fmt.Sprintf("command %q failed: %s", e.Command, strings.Join(e.Reasons, "; "))
}

// commander runs window manager commands and logs soft failures.
type commander struct {
	wm  WindowManager
	log pslog.Logger
}

func (c commander) run(ctx context.Context, command string) error {
	c.log.Debug("wm command", "cmd", command)
	results, err := c.wm.RunCommand(ctx, command)
	if err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	var reasons []string
	for _, res := range results {
		if res.Success {
			continue
		}
		reason := res.Error
		if reason == "" {
			reason = "unknown error"
		}
		reasons = append(reasons, reason)
	}
	if len(reasons) > 0 {
		c.log.Warn("wm command failed", "cmd", command, "err", strings.Join(reasons, "; "))
		return &CommandError{Command: command, Reasons: reasons}
	}
	return nil
}

func focusWorkspaceCommand(name schema.WorkspaceName) string {
	return "workspace " + quoteArg(string(name))
}

func focusOutputCommand(name schema.OutputName) string {
	return "focus output " + quoteArg(string(name))
}

func moveFocusedCommand(name schema.WorkspaceName) string {
	return "move container to workspace " + quoteArg(string(name))
}

func moveContainerCommand(id schema.ContainerID, name schema.WorkspaceName) string {
	return fmt.Sprintf("[con_id=%d] move container to workspace %s", id, quoteArg(string(name)))
}

// moveWorkspaceContentsCommand relocates every window on from onto to.
func moveWorkspaceContentsCommand(from, to schema.WorkspaceName) string {
	pattern := "^" + regexp.QuoteMeta(string(from)) + "$"
	return fmt.Sprintf("[workspace=%s] move container to workspace %s", quoteArg(pattern), quoteArg(string(to)))
}

func quoteArg(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(s) + `"`
}
