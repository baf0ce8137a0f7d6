package transport

import (
	"sync/atomic"

	"github.com/meeting-voice-lab/internal/logging"
)

// LogTransport is a development sink that discards audio and logs sizes.
type LogTransport struct {
	active atomic.Bool
	sent   atomic.Int64
}

func NewLogTransport() *LogTransport {
	t := &LogTransport{}
	t.active.Store(true)
	return t
}

func (t *LogTransport) IsActive() bool { return t.active.Load() }

func (t *LogTransport) SetActive(v bool) { t.active.Store(v) }

func (t *LogTransport) Send(audio []byte) error {
	t.sent.Add(1)
	logging.Debugw("log transport: discarding audio", "bytes", len(audio))
	return nil
}

// Sent reports how many payloads have been received.
func (t *LogTransport) Sent() int64 { return t.sent.Load() }
