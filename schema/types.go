package schema

// Tag is the user-facing logical workspace identifier, scoped per output.
type Tag string

// ContainerID is the window manager's opaque container id.
type ContainerID int64

// OutputName identifies an output as reported by the window manager.
type OutputName string

// WorkspaceName is the literal workspace name sent to the window manager.
type WorkspaceName string

// Direction selects the neighbour in the output ring.
type Direction int

const (
	// DirectionNext targets the following output in listing order.
	DirectionNext Direction = iota
	// DirectionPrev targets the preceding output in listing order.
	DirectionPrev
)

func (d Direction) String() string {
	if d == DirectionPrev {
		return "prev"
	}
	return "next"
}

// Output is one physical display as listed by the window manager.
type Output struct {
	Name    OutputName
	Active  bool
	Focused bool
}

// Workspace is one workspace as listed by the window manager.
type Workspace struct {
	Num     int64
	Name    WorkspaceName
	Output  OutputName
	Visible bool
	Focused bool
}

// CommandResult reports the outcome of one window manager sub-command.
type CommandResult struct {
	Success bool
	Error   string
}

// FocusEvent is a workspace change notification from the window manager.
type FocusEvent struct {
	Change    string
	Workspace WorkspaceName
	Output    OutputName
}

// OutputSnapshot is a read-only copy of one output's tag state.
type OutputSnapshot struct {
	Name        OutputName            `cbor:"name" yaml:"name"`
	Ordinal     int                   `cbor:"ordinal" yaml:"ordinal"`
	FocusedTag  Tag                   `cbor:"focused_tag" yaml:"focused_tag"`
	PreviousTag Tag                   `cbor:"previous_tag" yaml:"previous_tag"`
	Workspace   WorkspaceName         `cbor:"workspace" yaml:"workspace"`
	Borrowed    map[Tag][]ContainerID `cbor:"borrowed,omitempty" yaml:"borrowed,omitempty"`
}
