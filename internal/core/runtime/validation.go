package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/asynkron/architerm/internal/core/schema"
	"github.com/asynkron/architerm/internal/core/transcript"
)

var (
	messageSchemaLoader     gojsonschema.JSONLoader
	messageSchemaLoaderErr  error
	messageSchemaLoaderOnce sync.Once
)

// errIgnoredEvent marks well-formed envelopes for events the viewer does not
// handle.
var errIgnoredEvent = errors.New("ignored event")

// Drop reasons recorded in metrics.
const (
	dropMalformedEnvelope = "malformed_envelope"
	dropSchemaViolation   = "schema_violation"
	dropInvalidPayload    = "invalid_payload"
)

type schemaValidationError struct {
	issues []string
}

func (e schemaValidationError) Error() string {
	if len(e.issues) == 0 {
		return "message payload failed schema validation"
	}
	return strings.Join(e.issues, "; ")
}

// envelope is the frame format shared by both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messagePayload struct {
	Text    string `json:"text"`
	Display string `json:"display"`
	Section bool   `json:"section"`
}

// decodeFrame parses an inbound frame into a server message. The returned
// reason is the metrics label for frames that must be dropped.
func decodeFrame(frame []byte) (transcript.ServerMessage, string, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return transcript.ServerMessage{}, dropMalformedEnvelope, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event != schema.MessageEvent {
		return transcript.ServerMessage{}, "", fmt.Errorf("%w %q", errIgnoredEvent, env.Event)
	}
	if len(env.Data) == 0 {
		return transcript.ServerMessage{}, dropMalformedEnvelope, errors.New("message event without data")
	}

	if err := validateMessagePayload(env.Data); err != nil {
		var schemaErr schemaValidationError
		if errors.As(err, &schemaErr) {
			return transcript.ServerMessage{}, dropSchemaViolation, err
		}
		return transcript.ServerMessage{}, dropInvalidPayload, err
	}

	var payload messagePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return transcript.ServerMessage{}, dropInvalidPayload, fmt.Errorf("decode payload: %w", err)
	}
	display, err := transcript.ParseDisplayMode(payload.Display)
	if err != nil {
		return transcript.ServerMessage{}, dropInvalidPayload, err
	}

	return transcript.ServerMessage{
		Text:    payload.Text,
		Display: display,
		Section: payload.Section,
	}, "", nil
}

// encodeMessage builds the outbound frame for text typed by the user.
func encodeMessage(text string) ([]byte, error) {
	data, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return json.Marshal(envelope{Event: schema.MessageEvent, Data: data})
}

func validateMessagePayload(raw []byte) error {
	loader, err := loadMessageSchema()
	if err != nil {
		return fmt.Errorf("runtime: load message schema: %w", err)
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("runtime: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return schemaValidationError{issues: issues}
}

func loadMessageSchema() (gojsonschema.JSONLoader, error) {
	messageSchemaLoaderOnce.Do(func() {
		schemaMap, err := schema.MessageEventSchema()
		if err != nil {
			messageSchemaLoaderErr = err
			return
		}
		messageSchemaLoader = gojsonschema.NewGoLoader(schemaMap)
	})
	if messageSchemaLoaderErr != nil {
		return nil, messageSchemaLoaderErr
	}
	return messageSchemaLoader, nil
}
