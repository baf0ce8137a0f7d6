package routing

import (
	"math"

	"github.com/meeting-voice-lab/internal/config"
)

// Merger combines classifier signals with per-session history into a single
// route decision. It is a pure function of its inputs: identical
// (signals, history) pairs always produce identical decisions.
//
// Weighting: recent-intent history 40%, current classifier intent 40%,
// interruption/urgency 20%. Misrouting here causes either over-talking or
// unresponsive silence, so every branch records its trigger in Reasons.
type Merger struct {
	historyWeight   float64
	intentWeight    float64
	interruptWeight float64
	logOnlyMin      float64
	fullMin         float64
}

// NewMerger builds a merger from the configured weights and thresholds.
func NewMerger(cfg config.Config) *Merger {
	return &Merger{
		historyWeight:   cfg.HistoryWeight,
		intentWeight:    cfg.IntentWeight,
		interruptWeight: cfg.InterruptWeight,
		logOnlyMin:      cfg.LogOnlyThreshold,
		fullMin:         cfg.FullReasoningThreshold,
	}
}

// Merge resolves one routing decision.
func (m *Merger) Merge(sig ClassifierSignals, hist HistorySignals) RouteDecision {
	// Short-circuits before any weighting.
	if sig.IsSilence {
		return RouteDecision{Kind: RouteIgnore, Confidence: 1, Reasons: []string{"silence"}}
	}
	if sig.IsStopCommand {
		// The interrupt path already acted on this at arrival; the utterance
		// itself carries nothing to respond to.
		return RouteDecision{Kind: RouteIgnore, Confidence: 1, Reasons: []string{"stop_command"}}
	}
	if sig.IsExtension {
		return RouteDecision{Kind: RouteBufferMore, Confidence: 0.9, Reasons: []string{"duplicate_extension"}}
	}
	if sig.IsPartialFragment && sig.Urgency != UrgencyImmediate {
		return RouteDecision{Kind: RouteBufferMore, Confidence: 0.8, Reasons: []string{"partial_fragment"}}
	}

	score, reasons := m.score(sig, hist)

	// A greeting with nothing pending stays on the quick path unless the
	// weighted score already demands full reasoning.
	if sig.IsGreeting && !hist.HasPendingAction && score < m.fullMin {
		return RouteDecision{
			Kind:       RouteQuickReply,
			Confidence: clamp01(1 - score),
			Reasons:    append(reasons, "greeting"),
		}
	}

	// Addressed directly but without enough content to reason about.
	if sig.IsBotAddressed && !sig.IsCompleteThought {
		return RouteDecision{
			Kind:       RouteQuickAcknowledge,
			Confidence: 0.7,
			Reasons:    append(reasons, "bot_addressed_without_content"),
		}
	}

	if score >= m.fullMin {
		return RouteDecision{
			Kind:       RouteFullReasoning,
			Confidence: clamp01(score),
			Reasons:    append(reasons, "score_at_or_above_full_threshold"),
		}
	}

	// Below the full-reasoning threshold everything lands in LogOnly, except
	// that silently dropping an interruption is worse than a minimal
	// acknowledgment, so interruptions are promoted.
	if sig.IsInterruption {
		return RouteDecision{
			Kind:       RouteQuickAcknowledge,
			Confidence: clamp01(score + m.interruptWeight),
			Reasons:    append(reasons, "interruption_promoted_over_log_only"),
		}
	}
	reason := "score_below_full_threshold"
	if score < m.logOnlyMin {
		reason = "score_below_log_threshold"
	}
	return RouteDecision{
		Kind:       RouteLogOnly,
		Confidence: clamp01(1 - score),
		Reasons:    append(reasons, reason),
	}
}

// score computes the weighted scalar in [0,1] plus the triggers that fed it.
func (m *Merger) score(sig ClassifierSignals, hist HistorySignals) (float64, []string) {
	reasons := make([]string, 0, 4)

	historyScore := hist.ActionTrend
	if hist.HasPendingAction {
		// An unresolved action means the speaker is likely supplying the
		// follow-up input the agent asked for.
		historyScore = 1
		reasons = append(reasons, "pending_action")
	} else if hist.ActionTrend > 0 {
		reasons = append(reasons, "action_trend")
	}

	intentScore := 0.0
	switch {
	case sig.IsBotAddressed && sig.IsCompleteThought:
		intentScore = 1.0
		reasons = append(reasons, "bot_addressed_complete")
	case sig.IsActionRequest:
		intentScore = 1.0
		reasons = append(reasons, "action_request")
	case sig.IsBotAddressed:
		intentScore = 0.9
		reasons = append(reasons, "bot_addressed")
	case sig.IsCompleteThought:
		intentScore = 0.7
		reasons = append(reasons, "complete_thought")
	case sig.IsGreeting:
		intentScore = 0.3
	}
	interruptScore := 0.0
	if sig.IsInterruption {
		interruptScore = 1.0
		reasons = append(reasons, "interruption")
	} else if sig.Urgency == UrgencyImmediate {
		interruptScore = 0.5
	}

	score := m.historyWeight*historyScore +
		m.intentWeight*intentScore +
		m.interruptWeight*interruptScore
	return clamp01(score), reasons
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
