// Package schema holds the JSON schemas for payloads exchanged with the chat
// server.
package schema

import (
	"encoding/json"
	"fmt"
)

// MessageEvent is the name of the event that carries chat messages in both
// directions.
const MessageEvent = "message"

// DisplayModes lists the wire names accepted in the display field. The
// schema's display enum is built from it.
var DisplayModes = []string{"wrap", "box", "underline", "fit"}

const messageEventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "message event payload",
  "type": "object",
  "additionalProperties": true,
  "required": ["text", "display"],
  "properties": {
    "text": {
      "type": "string",
      "description": "Message body. Fit messages keep their exact whitespace."
    },
    "display": {
      "type": "string",
      "description": "Layout applied before rendering."
    },
    "section": {
      "type": "boolean",
      "description": "True when the message starts a new section of the transcript."
    }
  }
}`

// MessageEventSchema returns a fresh copy of the inbound message payload schema.
func MessageEventSchema() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(messageEventSchema), &out); err != nil {
		return nil, fmt.Errorf("schema: decode message event schema: %w", err)
	}
	properties, _ := out["properties"].(map[string]any)
	display, ok := properties["display"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema: message event schema has no display property")
	}
	enum := make([]any, len(DisplayModes))
	for i, mode := range DisplayModes {
		enum[i] = mode
	}
	display["enum"] = enum
	return out, nil
}
