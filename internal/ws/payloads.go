package ws

import "encoding/json"

// client → server
type Inbound struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournament_id,omitempty"`
}

// server → client
type Outbound struct {
	Type         string          `json:"type"`
	TournamentID string          `json:"tournament_id,omitempty"`
	Event        json.RawMessage `json:"event,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
