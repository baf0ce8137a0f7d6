package routing

import (
	"strings"
	"time"
	"unicode"

	"github.com/meeting-voice-lab/internal/config"
	"github.com/meeting-voice-lab/internal/session"
)

// Classifier extracts heuristic signals from transcript fragments. It runs
// on every fragment, including the many that get discarded, so the hot path
// avoids regexes and keeps allocations to one token split per call.
type Classifier struct {
	minWords  int
	dupWindow time.Duration
	pauseGap  time.Duration

	greetings     map[string]struct{}
	greetingWords [][]string
	fillers       map[string]struct{}
	stops         map[string]struct{}
	aliases       [][]string
	actions       [][]string
	botName       string
}

// NewClassifier builds a classifier from config lexicons. Phrases are
// normalized once here, never per fragment.
func NewClassifier(cfg config.Config) *Classifier {
	c := &Classifier{
		minWords:  cfg.MinWords,
		dupWindow: cfg.DuplicateWindow,
		pauseGap:  cfg.PauseGap,
		greetings: phraseSet(cfg.Greetings),
		fillers:   phraseSet(cfg.FillerWords),
		stops:     phraseSet(cfg.StopPhrases),
		botName:   normalizeToken(cfg.BotName),
	}
	for _, g := range cfg.Greetings {
		if w := phraseWords(g); len(w) > 0 {
			c.greetingWords = append(c.greetingWords, w)
		}
	}
	c.aliases = append(c.aliases, []string{c.botName})
	for _, a := range cfg.BotAliases {
		if w := phraseWords(a); len(w) > 0 {
			c.aliases = append(c.aliases, w)
		}
	}
	for _, a := range cfg.ActionPhrases {
		if w := phraseWords(a); len(w) > 0 {
			c.actions = append(c.actions, w)
		}
	}
	return c
}

// Classify derives signals for one fragment. It is a pure function of the
// event, the session snapshot, and whether a response is currently being
// delivered for this bot; ev.ReceivedAt stands in for "now" so results are
// reproducible.
func (c *Classifier) Classify(ev TranscriptEvent, sess session.ConversationSession, delivering bool) ClassifierSignals {
	var sig ClassifierSignals

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		sig.IsSilence = true
		sig.Urgency = UrgencyNone
		return sig
	}

	words := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(words))
	allFiller := true
	for _, w := range words {
		t := normalizeToken(w)
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
		if _, ok := c.fillers[t]; !ok {
			allFiller = false
		}
	}
	if len(tokens) == 0 || allFiller {
		sig.IsSilence = true
		sig.Urgency = UrgencyNone
		return sig
	}

	wc := ev.WordCount
	if wc <= 0 {
		wc = len(tokens)
	}
	terminal := hasTerminalPunctuation(text)

	// Duplicate extension: identical text re-sent within the dedup window is
	// a continuation of the same utterance, not a new turn.
	if sess.LastTranscript != "" && !sess.LastProcessedAt.IsZero() {
		if equalNormalized(text, sess.LastTranscript) &&
			ev.ReceivedAt.Sub(sess.LastProcessedAt) <= c.dupWindow {
			sig.IsExtension = true
		}
	}

	sig.IsGreeting = c.isGreeting(tokens)
	sig.IsBotAddressed = containsAnyPhrase(tokens, c.aliases)
	if name, ok := matchAnyPhrase(tokens, c.actions); ok {
		sig.IsActionRequest = true
		sig.ActionName = name
	}
	sig.IsStopCommand = c.isStopCommand(tokens)
	sig.IsInterruption = delivering

	// Greetings and stop commands are complete utterances however short.
	sig.IsPartialFragment = wc < c.minWords && !terminal &&
		!sig.IsGreeting && !sig.IsStopCommand

	pauseComplete := !sess.LastProcessedAt.IsZero() &&
		ev.ReceivedAt.Sub(sess.LastProcessedAt) >= c.pauseGap &&
		wc >= c.minWords
	sig.IsCompleteThought = (terminal && wc > c.minWords) || pauseComplete

	switch {
	case sig.IsBotAddressed || sig.IsActionRequest || sig.IsStopCommand:
		sig.Urgency = UrgencyImmediate
	case sig.IsPartialFragment:
		sig.Urgency = UrgencyWait
	default:
		sig.Urgency = UrgencyStandard
	}
	return sig
}

func (c *Classifier) isGreeting(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	if _, ok := c.greetings[strings.Join(tokens, " ")]; ok {
		return true
	}
	// Short utterances opening with a greeting phrase still count
	// ("hi all", "good morning everyone").
	if len(tokens) <= 4 {
		for _, g := range c.greetingWords {
			if len(g) <= len(tokens) && containsPhrase(tokens[:len(g)], g) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) isStopCommand(tokens []string) bool {
	if _, ok := c.stops[strings.Join(tokens, " ")]; ok {
		return true
	}
	// "<botname> stop" and friends: a stop phrase directly after the name.
	for i, t := range tokens {
		if t != c.botName {
			continue
		}
		rest := strings.Join(tokens[i+1:], " ")
		if _, ok := c.stops[rest]; ok {
			return true
		}
	}
	return false
}

// containsAnyPhrase reports whether any phrase occurs as a contiguous token
// sequence in tokens.
func containsAnyPhrase(tokens []string, phrases [][]string) bool {
	_, ok := matchAnyPhrase(tokens, phrases)
	return ok
}

// matchAnyPhrase returns the first phrase occurring as a contiguous token
// sequence in tokens, space-joined.
func matchAnyPhrase(tokens []string, phrases [][]string) (string, bool) {
	for _, ph := range phrases {
		if containsPhrase(tokens, ph) {
			return strings.Join(ph, " "), true
		}
	}
	return "", false
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(tokens) < len(phrase) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func hasTerminalPunctuation(text string) bool {
	r := []rune(strings.TrimRight(text, " \t\"'”’"))
	if len(r) == 0 {
		return false
	}
	switch r[len(r)-1] {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func equalNormalized(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

func normalizeToken(tok string) string {
	return strings.TrimFunc(strings.ToLower(tok), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func phraseSet(phrases []string) map[string]struct{} {
	out := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		if w := phraseWords(p); len(w) > 0 {
			out[strings.Join(w, " ")] = struct{}{}
		}
	}
	return out
}

func phraseWords(p string) []string {
	fields := strings.Fields(strings.ToLower(p))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := normalizeToken(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}
