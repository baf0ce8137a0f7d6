package orchestrator

import "math/rand"

// quickResponder serves the template paths that never touch the reasoning
// agent. Selection avoids repeating the bot's previous utterance.
type quickResponder struct {
	botName   string
	greetings []string
	acks      []string
	rng       *rand.Rand
}

func newQuickResponder(botName string, rng *rand.Rand) *quickResponder {
	return &quickResponder{
		botName: botName,
		greetings: []string{
			"Hi there! I'm " + botName + ", listening in. Just say my name if you need me.",
			"Hello! " + botName + " here, happy to help whenever you need.",
			"Hey! I'm here and listening. Call on me any time.",
		},
		acks: []string{
			"Got it, give me a moment.",
			"Sure, let me think about that.",
			"One second, working on it.",
			"On it.",
		},
		rng: rng,
	}
}

func (q *quickResponder) Greeting(lastOutput string) string {
	return q.pick(q.greetings, lastOutput)
}

func (q *quickResponder) Acknowledge(lastOutput string) string {
	return q.pick(q.acks, lastOutput)
}

func (q *quickResponder) pick(pool []string, lastOutput string) string {
	if len(pool) == 0 {
		return ""
	}
	i := q.rng.Intn(len(pool))
	if pool[i] == lastOutput && len(pool) > 1 {
		i = (i + 1) % len(pool)
	}
	return pool[i]
}
