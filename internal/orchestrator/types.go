package orchestrator

import (
	"time"

	"github.com/meeting-voice-lab/internal/routing"
	"github.com/meeting-voice-lab/internal/session"
	"github.com/meeting-voice-lab/internal/speech"
)

// State is the per-bot conversation state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateDispatching
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

// TurnResult is the record emitted for every processed transcript event.
type TurnResult struct {
	TurnID     string                 `json:"turn_id"`
	BotID      string                 `json:"bot_id"`
	SpeakerID  string                 `json:"speaker_id,omitempty"`
	Transcript string                 `json:"transcript"`
	Route      routing.RouteDecision  `json:"route"`
	Response   string                 `json:"response,omitempty"`
	Delivery   speech.DeliverySummary `json:"delivery"`
	Failed     bool                   `json:"failed,omitempty"`
	Error      string                 `json:"error,omitempty"`

	Session    session.ConversationSession `json:"session"`
	ReceivedAt time.Time                   `json:"received_at"`
	FinishedAt time.Time                   `json:"finished_at"`
}
