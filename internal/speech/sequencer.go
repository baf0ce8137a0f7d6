package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/meeting-voice-lab/internal/logging"
)

// Synthesizer turns one response unit's text into PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Transport is the audio sink for a call. Send must be safe to call from a
// single goroutine at a time; the Sequencer never calls it concurrently.
type Transport interface {
	Send(audio []byte) error
	IsActive() bool
}

// PlaybackCanceller is implemented by transports that can abandon audio
// already handed to Send but not yet played out.
type PlaybackCanceller interface {
	CancelPlayback() error
}

const (
	CallStatusActive   = "active"
	CallStatusInactive = "inactive"

	SkipReasonCallNotActive = "call_not_active"
)

// Sequencer generates audio for response units concurrently and delivers it
// to the transport in strict ascending unit order. Generation for unit N+1
// runs while unit N plays; delivery never reorders.
type Sequencer struct {
	tts        Synthesizer
	transport  Transport
	voice      string
	ttsTimeout time.Duration

	// bytesPerSec converts generated PCM byte counts to playback seconds.
	bytesPerSec int
}

func NewSequencer(tts Synthesizer, transport Transport, voice string, ttsTimeout time.Duration, bytesPerSec int) *Sequencer {
	if ttsTimeout <= 0 {
		ttsTimeout = 30 * time.Second
	}
	if bytesPerSec <= 0 {
		bytesPerSec = 48000
	}
	return &Sequencer{
		tts:        tts,
		transport:  transport,
		voice:      voice,
		ttsTimeout: ttsTimeout,
		bytesPerSec: bytesPerSec,
	}
}

type genResult struct {
	index uint32
	audio []byte
	err   error
}

// Deliver synthesizes and plays one batch of units. Units must be a
// contiguous ascending slice. A failed unit is skipped and does not block
// the units behind it; the summary carries the per-unit outcome counts.
func (s *Sequencer) Deliver(ctx context.Context, units []ResponseUnit, token *CancelToken) DeliverySummary {
	log := logging.GetLogger()
	summary := DeliverySummary{
		UnitsAttempted:     len(units),
		LastDeliveredIndex: -1,
	}
	if len(units) == 0 {
		summary.CallStatus = CallStatusActive
		return summary
	}
	if !s.transport.IsActive() {
		summary.CallStatus = CallStatusInactive
		summary.SkippedReason = SkipReasonCallNotActive
		log.Warnw("delivery skipped, call not active", "units", len(units))
		return summary
	}
	summary.CallStatus = CallStatusActive

	genCtx, stopGen := context.WithCancel(ctx)
	defer stopGen()
	go func() {
		select {
		case <-token.hard:
			stopGen()
		case <-genCtx.Done():
		}
	}()

	results := make(chan genResult, len(units))
	for _, u := range units {
		go func(u ResponseUnit) {
			uctx, cancel := context.WithTimeout(genCtx, s.ttsTimeout)
			defer cancel()
			audio, err := s.tts.Synthesize(uctx, u.Text, s.voice)
			results <- genResult{index: u.Index, audio: audio, err: err}
		}(u)
	}

	pending := make(map[uint32]genResult, len(units))
	next := units[0].Index
	last := units[len(units)-1].Index

	for received := 0; received < len(units); received++ {
		var r genResult
		select {
		case r = <-results:
		case <-token.hard:
			summary.Interrupted = true
			return summary
		case <-ctx.Done():
			summary.Interrupted = true
			return summary
		}
		pending[r.index] = r

		for next <= last {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			if token.HardCancelled() {
				summary.Interrupted = true
				return summary
			}
			if token.SoftCancelled() {
				summary.Interrupted = true
				log.Infow("delivery interrupted, dropping remaining units",
					"next_unit", next, "last_unit", last)
				return summary
			}

			if r.err != nil {
				summary.TTSFailed++
				log.Warnw("tts failed for unit, skipping",
					"unit_index", r.index, "error", r.err.Error())
				next++
				continue
			}
			summary.TTSGenerated++
			summary.GeneratedAudioSec += float64(len(r.audio)) / float64(s.bytesPerSec)

			if err := s.transport.Send(r.audio); err != nil {
				summary.SendFailed++
				summary.SendErrors = append(summary.SendErrors,
					fmt.Sprintf("unit %d: %v", r.index, err))
				log.Warnw("audio send failed for unit, skipping",
					"unit_index", r.index, "error", err.Error())
			} else {
				summary.UnitsSent++
				summary.LastDeliveredIndex = int64(r.index)
				token.recordDelivered(r.index)
			}
			next++
		}
	}
	return summary
}

// CancelPlayback asks the transport to drop any queued audio, if it can.
func (s *Sequencer) CancelPlayback() {
	if c, ok := s.transport.(PlaybackCanceller); ok {
		if err := c.CancelPlayback(); err != nil {
			logging.GetLogger().Warnw("cancel playback failed", "error", err.Error())
		}
	}
}
