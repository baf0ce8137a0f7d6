package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestApplySerializesPerKey(t *testing.T) {
	s := NewStore()
	defer s.Close()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Apply("bot-a", func(sess *ConversationSession) {
				sess.ProcessingCount++
			})
		}()
	}
	wg.Wait()

	got := s.Get("bot-a")
	if got.ProcessingCount != n {
		t.Fatalf("expected %d mutations, got %d", n, got.ProcessingCount)
	}
}

func TestApplyOrderPreservedForSingleCaller(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var order []int
	for i := 0; i < 50; i++ {
		i := i
		if err := s.Apply("bot-a", func(sess *ConversationSession) {
			order = append(order, i)
		}); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("mutation %d ran out of order: got %d", i, v)
		}
	}
}

func TestCrossKeyConcurrency(t *testing.T) {
	s := NewStore()
	defer s.Close()

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Apply("slow-bot", func(sess *ConversationSession) {
			close(blocked)
			<-release
		})
	}()
	<-blocked

	done := make(chan struct{})
	go func() {
		_ = s.Apply("fast-bot", func(sess *ConversationSession) {
			sess.ProcessingCount++
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutation on a different bot blocked behind a busy key")
	}
	close(release)
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	defer s.Close()

	_ = s.Apply("bot-a", func(sess *ConversationSession) {
		sess.AddPendingAction("send_email")
		sess.AppendTurn("user", "hello", time.Now(), 10)
	})

	snap := s.Get("bot-a")
	snap.PendingActions[0] = "mutated"
	snap.History[0].Content = "mutated"

	again := s.Get("bot-a")
	if again.PendingActions[0] != "send_email" {
		t.Fatalf("snapshot mutation leaked into store: %q", again.PendingActions[0])
	}
	if again.History[0].Content != "hello" {
		t.Fatalf("history mutation leaked into store: %q", again.History[0].Content)
	}
}

func TestInactivityReset(t *testing.T) {
	s := NewStore(WithInactivityTimeout(50 * time.Millisecond))
	defer s.Close()

	_ = s.Apply("bot-a", func(sess *ConversationSession) {
		sess.LastTranscript = "old words"
		sess.LastProcessedAt = time.Now()
		sess.ProcessingCount = 7
		sess.AppendTurn("user", "old words", time.Now(), 10)
	})

	time.Sleep(80 * time.Millisecond)

	got := s.Get("bot-a")
	if got.ProcessingCount != 0 {
		t.Fatalf("expected reset session, processing count %d", got.ProcessingCount)
	}
	if got.LastTranscript != "" || len(got.History) != 0 {
		t.Fatalf("expected cleared state, got transcript=%q history=%d", got.LastTranscript, len(got.History))
	}
	if got.BotID != "bot-a" {
		t.Fatalf("reset must keep identity, got %q", got.BotID)
	}
}

func TestNoResetWithinTimeout(t *testing.T) {
	s := NewStore(WithInactivityTimeout(time.Hour))
	defer s.Close()

	_ = s.Apply("bot-a", func(sess *ConversationSession) {
		sess.LastTranscript = "kept"
		sess.LastProcessedAt = time.Now()
	})
	got := s.Get("bot-a")
	if got.LastTranscript != "kept" {
		t.Fatalf("session reset too eagerly")
	}
}

func TestCloseRejectsNewWork(t *testing.T) {
	s := NewStore()
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := s.Apply("bot-a", func(*ConversationSession) {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type fakePersistence struct {
	mu    sync.Mutex
	saved map[string]ConversationSession
}

func (f *fakePersistence) Save(ctx context.Context, sess *ConversationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]ConversationSession)
	}
	f.saved[sess.BotID] = *sess
	return nil
}

func (f *fakePersistence) Load(ctx context.Context, botID string) (*ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.saved[botID]; ok {
		return &sess, nil
	}
	return nil, nil
}

func (f *fakePersistence) Close() error { return nil }

func TestPersistenceRoundTrip(t *testing.T) {
	p := &fakePersistence{}

	s := NewStore(WithPersistence(p))
	_ = s.Apply("bot-a", func(sess *ConversationSession) {
		sess.LastTranscript = "carried over"
		sess.LastProcessedAt = time.Now()
	})
	_ = s.Close()

	s2 := NewStore(WithPersistence(p))
	defer s2.Close()
	got := s2.Get("bot-a")
	if got.LastTranscript != "carried over" {
		t.Fatalf("expected persisted session, got %q", got.LastTranscript)
	}
}
