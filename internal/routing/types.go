package routing

import "time"

// TranscriptEvent is one fragment of streamed speech for a conversation.
// BotID and Text are the only required fields; WordCount and timing are
// filled in by the classifier when the producer omits them.
type TranscriptEvent struct {
	BotID              string    `json:"bot_id"`
	SpeakerID          string    `json:"speaker_id,omitempty"`
	Text               string    `json:"text"`
	ReceivedAt         time.Time `json:"received_at"`
	IsFinal            bool      `json:"is_final"`
	WordCount          int       `json:"word_count,omitempty"`
	SpeakingDurationMs int       `json:"speaking_duration_ms,omitempty"`
}

// Urgency ranks how quickly a fragment wants handling.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyWait
	UrgencyStandard
	UrgencyImmediate
)

func (u Urgency) String() string {
	switch u {
	case UrgencyNone:
		return "none"
	case UrgencyWait:
		return "wait"
	case UrgencyStandard:
		return "standard"
	case UrgencyImmediate:
		return "immediate"
	}
	return "unknown"
}

// ClassifierSignals is the heuristic feature set extracted from one
// transcript fragment.
type ClassifierSignals struct {
	IsSilence         bool
	IsPartialFragment bool
	IsGreeting        bool
	IsBotAddressed    bool
	IsInterruption    bool
	IsCompleteThought bool
	IsExtension       bool
	IsActionRequest   bool
	IsStopCommand     bool
	Urgency           Urgency

	// ActionName is the matched action phrase when IsActionRequest is set,
	// normalized to lowercase space-joined tokens. Sessions key pending
	// actions by this name.
	ActionName string
}

// RouteKind is the closed set of routing outcomes. Exactly one kind applies
// per decision and it fully determines downstream handling.
type RouteKind int

const (
	RouteIgnore RouteKind = iota
	RouteBufferMore
	RouteLogOnly
	RouteQuickAcknowledge
	RouteQuickReply
	RouteFullReasoning
)

func (k RouteKind) String() string {
	switch k {
	case RouteIgnore:
		return "ignore"
	case RouteBufferMore:
		return "buffer_more"
	case RouteLogOnly:
		return "log_only"
	case RouteQuickAcknowledge:
		return "quick_acknowledge"
	case RouteQuickReply:
		return "quick_reply"
	case RouteFullReasoning:
		return "full_reasoning"
	}
	return "unknown"
}

// RouteDecision is the merged routing outcome for one fragment. Reasons
// lists the heuristic triggers that produced it so misroutes can be
// diagnosed from logs alone.
type RouteDecision struct {
	Kind       RouteKind `json:"kind"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons"`
}

// HistorySignals summarizes per-session history for route merging.
type HistorySignals struct {
	// ActionTrend is the fraction of recent processed turns that carried an
	// action request, in [0,1].
	ActionTrend float64
	// HasPendingAction reports an unresolved agent action awaiting input.
	HasPendingAction bool
	// RecentTurns is how many turns contributed to ActionTrend.
	RecentTurns int
}
