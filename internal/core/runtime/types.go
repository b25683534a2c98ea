package runtime

import "github.com/asynkron/architerm/internal/core/transcript"

// EventType enumerates the events surfaced on the Outputs channel.
type EventType string

const (
	// EventTypeStatus carries informational progress such as dial attempts.
	EventTypeStatus EventType = "status"
	// EventTypeConnected fires each time a connection to the server is up.
	EventTypeConnected EventType = "connected"
	// EventTypeDisconnected fires when a connection is lost or a dial fails.
	EventTypeDisconnected EventType = "disconnected"
	// EventTypeMessage carries a validated inbound chat message in Chat.
	EventTypeMessage EventType = "message"
	// EventTypeError reports a fatal runtime failure; Run returns after it.
	EventTypeError EventType = "error"
)

// StatusLevel grades status events.
type StatusLevel string

const (
	StatusLevelInfo  StatusLevel = "info"
	StatusLevelWarn  StatusLevel = "warn"
	StatusLevelError StatusLevel = "error"
)

// RuntimeEvent is delivered in order on the Outputs channel.
type RuntimeEvent struct {
	Type     EventType
	Message  string
	Level    StatusLevel
	Chat     transcript.ServerMessage
	Metadata map[string]any
}

// InputType enumerates the requests hosts can push into the runtime.
type InputType string

const (
	InputTypeMessage  InputType = "message"
	InputTypeShutdown InputType = "shutdown"
)

// InputEvent is a request queued on the Inputs channel.
type InputEvent struct {
	Type   InputType
	Text   string
	Reason string
}
