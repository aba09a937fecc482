package chat

import (
	"encoding/json"
	"fmt"
)

// Event names carried in the envelope.
const (
	EventUser        = "user"
	EventChatMessage = "chat message"
)

// Envelope is the JSON frame exchanged over the WebSocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UserEvent announces a connection opening or closing, with the presence count at that instant.
type UserEvent struct {
	Username     string `json:"username"`
	CurrentUsers int64  `json:"currentUsers"`
	Connected    bool   `json:"connected"`
}

// ChatMessage is relayed to every open connection.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// encodeFrame marshals data into an envelope for event.
func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("chat: encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// decodeChatText accepts either a bare JSON string or an object with a message field.
// The text is relayed as is, empty included.
func decodeChatText(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("chat: message payload: %w", err)
	}
	return obj.Message, nil
}
