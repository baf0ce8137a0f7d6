package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("session store closed")
)

// Mutation is an atomic read-modify-write applied to one bot's session.
type Mutation func(*ConversationSession)

// Store holds per-bot conversation sessions. Mutations for one bot are
// serialized in arrival order by a per-key worker; different bots never
// block each other. Sessions are created lazily and reset in place when the
// inactivity timeout elapses before the next access.
type Store struct {
	mu      sync.RWMutex
	keys    map[string]*keyWorker
	closed  bool
	wg      sync.WaitGroup
	persist Persistence
	opts    storeOptions
}

// Persistence is an optional durable backend for session snapshots. The
// in-process store remains the source of truth; the backend lets a restarted
// bot pick up carry-over context.
type Persistence interface {
	Save(ctx context.Context, sess *ConversationSession) error
	Load(ctx context.Context, botID string) (*ConversationSession, error)
	Close() error
}

type keyWorker struct {
	jobs chan job
	sess *ConversationSession
}

type job struct {
	fn   Mutation
	done chan struct{}
}

// NewStore creates a session store. See Option for tuning knobs.
func NewStore(opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		keys:    make(map[string]*keyWorker),
		persist: o.persist,
		opts:    o,
	}
}

// Get returns a copy of the session for botID, creating a default one if
// absent. The returned value is a snapshot; mutate via Apply.
func (s *Store) Get(botID string) ConversationSession {
	var snap ConversationSession
	_ = s.Apply(botID, func(sess *ConversationSession) {
		snap = sess.clone()
	})
	return snap
}

// Apply runs fn against the session for botID with exclusive access. Calls
// for the same botID execute in arrival order; calls for different botIDs
// proceed concurrently. Apply blocks until fn has run.
func (s *Store) Apply(botID string, fn Mutation) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	w, ok := s.keys[botID]
	if !ok {
		s.mu.RUnlock()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		w, ok = s.keys[botID]
		if !ok {
			w = &keyWorker{
				jobs: make(chan job, 64),
				sess: s.loadOrCreate(botID),
			}
			s.keys[botID] = w
			s.wg.Add(1)
			go s.runWorker(botID, w)
		}
		s.mu.Unlock()
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return ErrClosed
		}
	}

	// Channel sends preserve arrival order per key; a full queue blocks only
	// callers of this botID, never other conversations. The read lock is held
	// across the send so Close cannot tear the worker down underneath us.
	j := job{fn: fn, done: make(chan struct{})}
	w.jobs <- j
	s.mu.RUnlock()

	<-j.done
	return nil
}

func (s *Store) runWorker(botID string, w *keyWorker) {
	defer s.wg.Done()
	for j := range w.jobs {
		now := time.Now()
		s.maybeReset(w.sess, now)
		j.fn(w.sess)
		close(j.done)
		if s.persist != nil {
			snap := w.sess.clone()
			// Tracked by the store waitgroup so Close flushes the last save.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.persist.Save(ctx, &snap); err != nil {
					logging.Debugw("session: persist save failed", "bot.id", botID, "err", err)
				}
			}()
		}
	}
}

// maybeReset starts a fresh session when the previous one went quiet for
// longer than the inactivity timeout. Dedup and continuation logic must not
// carry across that gap.
func (s *Store) maybeReset(sess *ConversationSession, now time.Time) {
	if s.opts.inactivity <= 0 {
		return
	}
	if sess.LastProcessedAt.IsZero() {
		return
	}
	if now.Sub(sess.LastProcessedAt) > s.opts.inactivity {
		logging.Infow("session: inactivity reset",
			"bot.id", sess.BotID,
			"idle", now.Sub(sess.LastProcessedAt).String(),
			"turns", sess.ProcessingCount)
		sess.reset(now)
	}
}

func (s *Store) loadOrCreate(botID string) *ConversationSession {
	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if sess, err := s.persist.Load(ctx, botID); err != nil {
			logging.Warnw("session: persist load failed", "bot.id", botID, "err", err)
		} else if sess != nil {
			return sess
		}
	}
	return &ConversationSession{BotID: botID, SessionStartedAt: time.Now()}
}

// Close drains all per-key workers and shuts down the persistence backend.
// Pending Apply calls complete; new calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, w := range s.keys {
		close(w.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}
