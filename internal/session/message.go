// Package session implements the per-connection state machine (§4.11)
// and its wire JSON message types (§6): AWAITING_AUTH -> AWAITING_CONFIG
// -> ACTIVE -> CLOSED, transported over github.com/gorilla/websocket,
// reusing its Close* code constants.
package session

import (
	"encoding/json"

	"github.com/scribear/scribear/internal/stabilize"
)

// AuthMessage is the client's first text message.
type AuthMessage struct {
	Type   string `json:"type"`
	APIKey string `json:"api_key"`
}

// ConfigMessage is the client's second text message; Config is opaque
// to the session and validated by the chosen provider.
type ConfigMessage struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// TranscriptMessage is a server->client ip_transcript or
// final_transcript message.
type TranscriptMessage struct {
	Type   string    `json:"type"`
	Text   []string  `json:"text"`
	Starts []float64 `json:"starts,omitempty"`
	Ends   []float64 `json:"ends,omitempty"`
}

func newTranscriptMessage(kind string, seq stabilize.Sequence) TranscriptMessage {
	return TranscriptMessage{
		Type:   kind,
		Text:   seq.Text,
		Starts: seq.Starts,
		Ends:   seq.Ends,
	}
}

// InProgressMessage builds an ip_transcript message from seq.
func InProgressMessage(seq stabilize.Sequence) TranscriptMessage {
	return newTranscriptMessage("ip_transcript", seq)
}

// FinalMessage builds a final_transcript message from seq.
func FinalMessage(seq stabilize.Sequence) TranscriptMessage {
	return newTranscriptMessage("final_transcript", seq)
}
