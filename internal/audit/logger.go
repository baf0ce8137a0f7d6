package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

// Logger posts turn records to an external webhook, fire-and-forget. A failed
// or slow post never blocks or fails a turn; Close drains in-flight posts.
type Logger struct {
	url     string
	secret  string
	client  *http.Client
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLogger(url, secret string, timeout time.Duration) *Logger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Logger{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Enabled reports whether a webhook URL is configured.
func (l *Logger) Enabled() bool {
	return l != nil && l.url != ""
}

// LogTurn serializes payload and posts it asynchronously. Records arriving
// after Close are dropped.
func (l *Logger) LogTurn(payload any) {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		l.wg.Done()
		logging.Warnw("audit: marshal failed", "err", err)
		return
	}
	go func() {
		defer l.wg.Done()
		l.post(body)
	}()
}

func (l *Logger) post(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		logging.Warnw("audit: new request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if l.secret != "" {
		req.Header.Set("X-Webhook-Secret", l.secret)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		logging.Debugw("audit: post failed", "err", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		logging.Debugw("audit: webhook returned non-2xx", "status", resp.StatusCode)
	}
}

// Close stops accepting new records and waits for in-flight posts.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}
