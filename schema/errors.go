package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidTag indicates an empty or blank tag.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrUnknownVerb indicates a request verb the daemon does not handle.
	ErrUnknownVerb = errors.New("unknown verb")
	// ErrDaemonOnly indicates a verb that may not be sent over the socket.
	ErrDaemonOnly = errors.New("verb is daemon-only")
	// ErrNoFocusedOutput indicates the window manager reports no focused output.
	ErrNoFocusedOutput = errors.New("no focused output")
	// ErrNoOutputs indicates the window manager reports no outputs at all.
	ErrNoOutputs = errors.New("no outputs")
	// ErrNoVisibleWorkspace indicates the target output shows no workspace.
	ErrNoVisibleWorkspace = errors.New("no visible workspace on output")
	// ErrNoFocusedContainer indicates there is no focused container to move.
	ErrNoFocusedContainer = errors.New("no focused container")
	// ErrRequestFailed wraps an error reported by the daemon.
	ErrRequestFailed = errors.New("request failed")
	// ErrPeerRejected indicates a control socket peer from another user.
	ErrPeerRejected = errors.New("peer rejected")
)
