package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meeting-voice-lab/internal/audit"
	"github.com/meeting-voice-lab/internal/config"
	"github.com/meeting-voice-lab/internal/logging"
	"github.com/meeting-voice-lab/internal/routing"
	"github.com/meeting-voice-lab/internal/session"
	"github.com/meeting-voice-lab/internal/speech"
)

// UnknownBotID keys events that arrive without a bot identifier.
const UnknownBotID = "unknown-bot"

// AgentInvoker is the reasoning agent boundary. agent.Client satisfies this.
type AgentInvoker interface {
	Invoke(ctx context.Context, prompt, systemContext string, maxToolIterations int, timeout time.Duration) (string, error)
}

// TransportProvider resolves the audio sink for a bot's call.
type TransportProvider interface {
	TransportFor(botID string) speech.Transport
}

type singleTransport struct{ t speech.Transport }

func (s singleTransport) TransportFor(string) speech.Transport { return s.t }

// SingleTransport adapts one shared transport for all bots.
func SingleTransport(t speech.Transport) TransportProvider { return singleTransport{t: t} }

// Orchestrator routes transcript events through classification to the quick
// or reasoning response path, one bot at a time per bot, concurrently across
// bots.
type Orchestrator struct {
	cfg        config.Config
	store      *session.Store
	classifier *routing.Classifier
	merger     *routing.Merger
	chunker    *speech.Chunker
	tts        speech.Synthesizer
	transports TransportProvider
	agent      AgentInvoker
	audit      *audit.Logger

	mu     sync.RWMutex
	bots   map[string]*botWorker
	closed bool
	wg     sync.WaitGroup

	// OnTurn, when set, receives every emitted turn result. Used by tests.
	OnTurn func(TurnResult)
}

// queuedEvent carries a transcript together with whether a response was in
// flight when it arrived. The worker is single-threaded, so by dequeue time
// the delivery it interrupted has already ended; the flag preserves the
// interruption for route merging.
type queuedEvent struct {
	ev                routing.TranscriptEvent
	arrivedDelivering bool
}

type botWorker struct {
	botID     string
	events    chan queuedEvent
	active    speech.ActiveTurn
	sequencer *speech.Sequencer
	quick     *quickResponder

	mu    sync.Mutex
	state State
}

func New(cfg config.Config, store *session.Store, tts speech.Synthesizer, transports TransportProvider, ag AgentInvoker, al *audit.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		classifier: routing.NewClassifier(cfg),
		merger:     routing.NewMerger(cfg),
		chunker:    speech.NewChunker(cfg.MinUnitChars),
		tts:        tts,
		transports: transports,
		agent:      ag,
		audit:      al,
		bots:       make(map[string]*botWorker),
	}
}

// HandleTranscript accepts one transcript event. Interruption of an in-flight
// response is checked here so it never queues behind the response being
// delivered; everything else is processed in arrival order per bot.
func (o *Orchestrator) HandleTranscript(ev routing.TranscriptEvent) error {
	if ev.BotID == "" {
		logging.Warnw("transcript event without bot id, using sentinel",
			"speaker_id", ev.SpeakerID)
		ev.BotID = UnknownBotID
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	w, err := o.worker(ev.BotID)
	if err != nil {
		return err
	}

	delivering := w.active.Delivering()
	if delivering {
		sess := o.store.Get(ev.BotID)
		sig := o.classifier.Classify(ev, sess, true)
		if sig.IsStopCommand || sig.IsInterruption {
			turnID, last, ok := w.active.Interrupt(sig.IsStopCommand)
			if ok {
				logging.Infow("interrupting in-flight response",
					"bot_id", ev.BotID, "turn_id", turnID,
					"hard", sig.IsStopCommand, "last_delivered_unit", last)
				if sig.IsStopCommand {
					w.sequencer.CancelPlayback()
				}
			}
		}
	}

	// The read lock pairs with the write lock held in Close while worker
	// channels are closed, so this send can never hit a closed channel.
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return fmt.Errorf("orchestrator closed")
	}
	select {
	case w.events <- queuedEvent{ev: ev, arrivedDelivering: delivering}:
		return nil
	default:
		logging.Warnw("event queue full, dropping transcript",
			"bot_id", ev.BotID, "text_len", len(ev.Text))
		return fmt.Errorf("event queue full for bot %s", ev.BotID)
	}
}

func (o *Orchestrator) worker(botID string) (*botWorker, error) {
	o.mu.RLock()
	w, ok := o.bots[botID]
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("orchestrator closed")
	}
	if ok {
		return w, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, fmt.Errorf("orchestrator closed")
	}
	if w, ok = o.bots[botID]; ok {
		return w, nil
	}
	w = &botWorker{
		botID:  botID,
		events: make(chan queuedEvent, 64),
		state:  StateListening,
		quick:  newQuickResponder(o.cfg.BotName, rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	w.sequencer = speech.NewSequencer(o.tts, o.transports.TransportFor(botID),
		o.cfg.TTSVoice, o.cfg.TTSTimeout, o.cfg.AudioBytesPerSec)
	o.bots[botID] = w
	o.wg.Add(1)
	go o.runWorker(w)
	return w, nil
}

func (o *Orchestrator) runWorker(w *botWorker) {
	defer o.wg.Done()
	for qe := range w.events {
		o.processEvent(w, qe)
	}
}

func (w *botWorker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// State reports the bot's current conversation state.
func (o *Orchestrator) State(botID string) State {
	o.mu.RLock()
	w, ok := o.bots[botID]
	o.mu.RUnlock()
	if !ok {
		return StateIdle
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (o *Orchestrator) processEvent(w *botWorker, qe queuedEvent) {
	ev := qe.ev
	turnID := uuid.NewString()
	log := logging.GetLogger()

	sess := o.store.Get(ev.BotID)
	sig := o.classifier.Classify(ev, sess, qe.arrivedDelivering || w.active.Delivering())
	hist := routing.HistorySignals{
		ActionTrend:      sess.IntentTrend(),
		HasPendingAction: sess.HasPendingAction(),
		RecentTurns:      len(sess.History),
	}
	dec := o.merger.Merge(sig, hist)
	log.Debugw("route decided",
		"bot_id", ev.BotID, "turn_id", turnID,
		"route", dec.Kind.String(), "confidence", dec.Confidence,
		"reasons", strings.Join(dec.Reasons, ","))

	switch dec.Kind {
	case routing.RouteIgnore, routing.RouteBufferMore:
		return
	case routing.RouteLogOnly:
		o.logOnlyTurn(w, ev, dec, turnID)
		return
	}

	w.setState(StateDispatching)
	defer w.setState(StateListening)

	var (
		response string
		failed   bool
		turnErr  string
	)
	switch dec.Kind {
	case routing.RouteQuickReply:
		response = w.quick.Greeting(sess.LastAgentOutput)
	case routing.RouteQuickAcknowledge:
		response = w.quick.Acknowledge(sess.LastAgentOutput)
	case routing.RouteFullReasoning:
		if sig.IsActionRequest {
			o.mutate(ev.BotID, func(s *session.ConversationSession) {
				s.AddPendingAction(sig.ActionName)
			})
		}
		text, err := o.invokeAgent(ev, sess)
		if err != nil {
			log.Errorw("agent invocation failed",
				"bot_id", ev.BotID, "turn_id", turnID, "err", err)
			failed = true
			turnErr = err.Error()
		} else {
			response = text
		}
	}

	var summary speech.DeliverySummary
	summary.LastDeliveredIndex = -1
	if !failed && response != "" {
		// Register the cancel token before the state flips to Responding so
		// an interrupt arriving right after the transition always lands.
		token := w.active.Begin(turnID)
		w.setState(StateResponding)
		summary = o.respond(w, turnID, response, token)
		w.active.End(turnID)
	}

	o.mutate(ev.BotID, func(s *session.ConversationSession) {
		if failed {
			// A failed turn leaves the session as it was, minus the
			// dispatch-time pending action, plus a failure marker.
			if sig.IsActionRequest {
				s.ResolvePendingAction(sig.ActionName)
			}
			s.LastFailure = turnErr
			s.LastFailureAt = time.Now()
			return
		}
		s.LastTranscript = ev.Text
		s.LastProcessedAt = ev.ReceivedAt
		s.ProcessingCount++
		s.AppendTurn("user", ev.Text, ev.ReceivedAt, o.cfg.HistoryWindow)
		s.AppendIntent(sig.IsActionRequest || sig.IsBotAddressed, o.cfg.HistoryWindow)
		if response != "" {
			s.AppendTurn("assistant", response, time.Now(), o.cfg.HistoryWindow)
			s.LastAgentOutput = response
		}
		if dec.Kind == routing.RouteFullReasoning && sig.IsActionRequest {
			s.ResolvePendingAction(sig.ActionName)
		}
	})

	o.emit(TurnResult{
		TurnID:     turnID,
		BotID:      ev.BotID,
		SpeakerID:  ev.SpeakerID,
		Transcript: ev.Text,
		Route:      dec,
		Response:   response,
		Delivery:   summary,
		Failed:     failed,
		Error:      turnErr,
		Session:    o.store.Get(ev.BotID),
		ReceivedAt: ev.ReceivedAt,
		FinishedAt: time.Now(),
	})
}

func (o *Orchestrator) logOnlyTurn(w *botWorker, ev routing.TranscriptEvent, dec routing.RouteDecision, turnID string) {
	o.mutate(ev.BotID, func(s *session.ConversationSession) {
		s.LastTranscript = ev.Text
		s.LastProcessedAt = ev.ReceivedAt
		s.AppendTurn("user", ev.Text, ev.ReceivedAt, o.cfg.HistoryWindow)
	})
	o.emit(TurnResult{
		TurnID:     turnID,
		BotID:      ev.BotID,
		SpeakerID:  ev.SpeakerID,
		Transcript: ev.Text,
		Route:      dec,
		Delivery:   speech.DeliverySummary{LastDeliveredIndex: -1},
		Session:    o.store.Get(ev.BotID),
		ReceivedAt: ev.ReceivedAt,
		FinishedAt: time.Now(),
	})
}

func (o *Orchestrator) invokeAgent(ev routing.TranscriptEvent, sess session.ConversationSession) (string, error) {
	var b strings.Builder
	for _, t := range sess.History {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(ev.Text)

	system := o.cfg.SystemPrompt
	if sess.HasPendingAction() {
		system += "\nThere is an unresolved action request from earlier in this conversation."
	}
	return o.agent.Invoke(context.Background(), b.String(), system,
		o.cfg.MaxToolIterations, o.cfg.AgentTimeout)
}

// respond chunks the text and drives the pacing loop: first unit immediately,
// then batches as the audio buffer drains toward the low-water mark.
func (o *Orchestrator) respond(w *botWorker, turnID, text string, token *speech.CancelToken) speech.DeliverySummary {
	units := o.chunker.Chunk(text)
	pacer := speech.NewPacer(o.cfg.MaxBatchChars, o.cfg.LowWaterSec)

	summary := speech.DeliverySummary{LastDeliveredIndex: -1}
	pending := units
	audioEnd := time.Now()

	for len(pending) > 0 && !token.Cancelled() {
		remaining := time.Until(audioEnd).Seconds()
		submit, rest := pacer.Next(pending, remaining)
		if len(submit) == 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-token.Done():
			}
			continue
		}
		batch := w.sequencer.Deliver(context.Background(), submit, token)
		summary.Merge(batch)
		pending = rest
		if batch.SkippedReason != "" || batch.Interrupted {
			break
		}
		now := time.Now()
		if audioEnd.Before(now) {
			audioEnd = now
		}
		audioEnd = audioEnd.Add(time.Duration(batch.GeneratedAudioSec * float64(time.Second)))
	}
	if token.Cancelled() {
		summary.Interrupted = true
	}
	logging.Infow("response delivered",
		"bot_id", w.botID, "turn_id", turnID,
		"units_sent", summary.UnitsSent, "tts_failed", summary.TTSFailed,
		"interrupted", summary.Interrupted, "call_status", summary.CallStatus)
	return summary
}

func (o *Orchestrator) mutate(botID string, fn session.Mutation) {
	if err := o.store.Apply(botID, fn); err != nil {
		logging.Warnw("session update failed", "bot_id", botID, "err", err)
	}
}

func (o *Orchestrator) emit(res TurnResult) {
	if o.audit != nil {
		o.audit.LogTurn(res)
	}
	if o.OnTurn != nil {
		o.OnTurn(res)
	}
}

// Close stops all bot workers after their queued events drain.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, w := range o.bots {
		close(w.events)
	}
	o.mu.Unlock()
	o.wg.Wait()
}
