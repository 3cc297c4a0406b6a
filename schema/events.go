package schema

// StateReason names the operation that produced a state event.
type StateReason string

const (
	// ReasonInit marks the initial state after startup.
	ReasonInit StateReason = "init"
	// ReasonCommand marks a change applied from the control socket.
	ReasonCommand StateReason = "command"
	// ReasonFocus marks a change observed from the window manager.
	ReasonFocus StateReason = "focus"
)

// StateEvent carries a full snapshot after a state change.
type StateEvent struct {
	Reason  StateReason      `cbor:"reason" yaml:"reason"`
	Verb    Verb             `cbor:"verb,omitempty" yaml:"verb,omitempty"`
	Outputs []OutputSnapshot `cbor:"outputs" yaml:"outputs"`
}
