package session

import "time"

// TurnRecord is one prior exchange kept for carry-over context when building
// reasoning-agent prompts.
type TurnRecord struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession is the per-bot mutable state. Fields are only ever
// mutated as a group through Store.Apply; no partial write is observable.
type ConversationSession struct {
	BotID            string    `json:"bot_id"`
	LastTranscript   string    `json:"last_transcript"`
	LastProcessedAt  time.Time `json:"last_processed_at"`
	ProcessingCount  uint64    `json:"processing_count"`
	SessionStartedAt time.Time `json:"session_started_at"`
	LastAgentOutput  string    `json:"last_agent_output"`

	// PendingActions names tool/agent actions awaiting follow-up input
	// (e.g. "collect_email_address").
	PendingActions []string `json:"pending_actions,omitempty"`

	// LastFailure marks the most recent failed reasoning turn. Failed turns
	// record only this marker; everything else stays as it was.
	LastFailure   string    `json:"last_failure,omitempty"`
	LastFailureAt time.Time `json:"last_failure_at,omitempty"`

	// History keeps a bounded window of recent turns for prompt building.
	History []TurnRecord `json:"history,omitempty"`

	// RecentIntents records, per processed turn, whether it carried an
	// action request. Bounded to the configured history window; used to
	// compute the recent-intent trend for route merging.
	RecentIntents []bool `json:"recent_intents,omitempty"`
}

// IsFirstMessage reports whether no turn has been processed yet in the
// current session (fresh or freshly reset).
func (s *ConversationSession) IsFirstMessage() bool {
	return s.ProcessingCount == 0
}

// HasPendingAction reports whether any agent action awaits follow-up input.
func (s *ConversationSession) HasPendingAction() bool {
	return len(s.PendingActions) > 0
}

// AddPendingAction records an action awaiting follow-up, deduplicating by name.
func (s *ConversationSession) AddPendingAction(name string) {
	for _, a := range s.PendingActions {
		if a == name {
			return
		}
	}
	s.PendingActions = append(s.PendingActions, name)
}

// ResolvePendingAction removes a previously recorded pending action.
func (s *ConversationSession) ResolvePendingAction(name string) {
	out := s.PendingActions[:0]
	for _, a := range s.PendingActions {
		if a != name {
			out = append(out, a)
		}
	}
	s.PendingActions = out
}

// AppendTurn pushes a turn record, trimming history to limit entries.
func (s *ConversationSession) AppendTurn(role, content string, at time.Time, limit int) {
	s.History = append(s.History, TurnRecord{Role: role, Content: content, Timestamp: at})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// AppendIntent records whether a processed turn was an action request,
// trimming to limit entries.
func (s *ConversationSession) AppendIntent(action bool, limit int) {
	s.RecentIntents = append(s.RecentIntents, action)
	if limit > 0 && len(s.RecentIntents) > limit {
		s.RecentIntents = s.RecentIntents[len(s.RecentIntents)-limit:]
	}
}

// IntentTrend returns the fraction of recent turns that were action requests.
func (s *ConversationSession) IntentTrend() float64 {
	if len(s.RecentIntents) == 0 {
		return 0
	}
	n := 0
	for _, a := range s.RecentIntents {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(s.RecentIntents))
}

// reset clears all fields except the identity key, starting a fresh session.
func (s *ConversationSession) reset(now time.Time) {
	id := s.BotID
	*s = ConversationSession{BotID: id, SessionStartedAt: now}
}

// clone returns a deep copy safe to hand to readers.
func (s *ConversationSession) clone() ConversationSession {
	out := *s
	out.PendingActions = append([]string(nil), s.PendingActions...)
	out.History = append([]TurnRecord(nil), s.History...)
	out.RecentIntents = append([]bool(nil), s.RecentIntents...)
	return out
}
