package schema

// Verb names one command on the control socket.
type Verb string

const (
	// VerbInit starts the daemon; never sent over the socket.
	VerbInit Verb = "init"
	// VerbFocus focuses a tag on the focused output.
	VerbFocus Verb = "focus"
	// VerbMove moves the focused container to a tag.
	VerbMove Verb = "move"
	// VerbNextOutput moves the focused container to the next output.
	VerbNextOutput Verb = "next-output"
	// VerbPrevOutput moves the focused container to the previous output.
	VerbPrevOutput Verb = "prev-output"
	// VerbBring borrows a tag's containers, or returns them when already borrowed.
	VerbBring Verb = "bring"
	// VerbAltTab toggles to the previously focused tag.
	VerbAltTab Verb = "alt-tab"
	// VerbFocusAllOutputs focuses a tag on every output.
	VerbFocusAllOutputs Verb = "focus-all-outputs"
	// VerbState returns a snapshot of every output's tag state.
	VerbState Verb = "state"
	// VerbWatch streams state events until the peer disconnects.
	VerbWatch Verb = "watch"
)

// TakesTag reports whether the verb requires a tag argument.
func (v Verb) TakesTag() bool {
	switch v {
	case VerbFocus, VerbMove, VerbBring, VerbFocusAllOutputs:
		return true
	}
	return false
}

// Known reports whether the verb is part of the vocabulary.
func (v Verb) Known() bool {
	switch v {
	case VerbInit, VerbFocus, VerbMove, VerbNextOutput, VerbPrevOutput, VerbBring,
		VerbAltTab, VerbFocusAllOutputs, VerbState, VerbWatch:
		return true
	}
	return false
}

// Request is the wire-format command sent over the control socket.
type Request struct {
	Verb Verb `cbor:"verb"`
	Tag  Tag  `cbor:"tag,omitempty"`
}

// Response is the wire-format reply written after a request is applied.
type Response struct {
	OK      bool             `cbor:"ok"`
	Error   string           `cbor:"error,omitempty"`
	Outputs []OutputSnapshot `cbor:"outputs,omitempty"`
}
