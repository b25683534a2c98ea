// Package transcript holds the ordered message history shown by the viewer
// and derives which messages are in focus for a given scroll position.
package transcript

import (
	"fmt"
	"strings"
)

// Origin records who produced a message.
type Origin int

const (
	OriginUser Origin = iota
	OriginServer
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginServer:
		return "server"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// DisplayMode selects the layout applied to a message before it is painted.
type DisplayMode int

const (
	DisplayWrap DisplayMode = iota
	DisplayBox
	DisplayUnderline
	DisplayFit
)

func (d DisplayMode) String() string {
	switch d {
	case DisplayWrap:
		return "wrap"
	case DisplayBox:
		return "box"
	case DisplayUnderline:
		return "underline"
	case DisplayFit:
		return "fit"
	default:
		return fmt.Sprintf("display(%d)", int(d))
	}
}

// ParseDisplayMode maps the wire name of a display mode to its value.
func ParseDisplayMode(name string) (DisplayMode, error) {
	switch name {
	case "wrap":
		return DisplayWrap, nil
	case "box":
		return DisplayBox, nil
	case "underline":
		return DisplayUnderline, nil
	case "fit":
		return DisplayFit, nil
	default:
		return 0, fmt.Errorf("unknown display mode %q", name)
	}
}

// Message is a single transcript entry. Only Visible changes after creation.
type Message struct {
	Text         string
	Origin       Origin
	Display      DisplayMode
	SectionStart bool
	// Visible is nil until the renderer first reports on the message.
	Visible *bool
}

// ServerMessage is the payload of an inbound message event.
type ServerMessage struct {
	Text    string
	Display DisplayMode
	Section bool
}

// Store is the append-only message history. It is owned by a single
// goroutine (the UI loop) and is not safe for concurrent use.
type Store struct {
	messages []Message
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{}
}

// AppendUser records text typed by the local user.
func (s *Store) AppendUser(text string) Message {
	msg := Message{Text: text, Origin: OriginUser, Display: DisplayWrap}
	s.messages = append(s.messages, msg)
	return msg
}

// AppendServer records a message delivered by the server. Fit messages keep
// their exact whitespace; every other mode is trimmed.
func (s *Store) AppendServer(in ServerMessage) Message {
	text := in.Text
	if in.Display != DisplayFit {
		text = strings.TrimSpace(text)
	}
	msg := Message{
		Text:         text,
		Origin:       OriginServer,
		Display:      in.Display,
		SectionStart: in.Section,
	}
	s.messages = append(s.messages, msg)
	return msg
}

// SetVisible stores the latest visibility report for the message at index.
// Reports for unknown indexes are ignored and return false.
func (s *Store) SetVisible(index int, visible bool) bool {
	if index < 0 || index >= len(s.messages) {
		return false
	}
	v := visible
	s.messages[index].Visible = &v
	return true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// At returns the message at index.
func (s *Store) At(index int) Message {
	return s.messages[index]
}

// Messages returns a copy of the history in arrival order.
func (s *Store) Messages() []Message {
	return append([]Message(nil), s.messages...)
}
