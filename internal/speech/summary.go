package speech

// DeliverySummary is the externally observable result of one response turn's
// audio delivery. Per-unit failures are aggregated here rather than
// propagated; only whole-turn conditions (call inactive, agent failure)
// short-circuit upstream.
type DeliverySummary struct {
	UnitsAttempted int `json:"units_attempted"`
	TTSGenerated   int `json:"tts_generated"`
	TTSFailed      int `json:"tts_failed"`
	UnitsSent      int `json:"units_sent"`
	SendFailed     int `json:"send_failed"`

	// SendErrors retains per-unit sink error messages for diagnosis.
	SendErrors []string `json:"send_errors,omitempty"`

	// SkippedReason is set when the whole turn was skipped before any
	// generation cost was incurred (e.g. call not active).
	SkippedReason string `json:"skipped_reason,omitempty"`
	CallStatus    string `json:"call_status"`

	// LastDeliveredIndex is the highest unit index handed to the sink, or -1.
	LastDeliveredIndex int64 `json:"last_delivered_index"`

	// Interrupted marks a turn whose delivery was cancelled mid-flight.
	Interrupted bool `json:"interrupted,omitempty"`

	// GeneratedAudioSec estimates the spoken duration of all generated audio.
	GeneratedAudioSec float64 `json:"generated_audio_sec"`
}

// Merge folds another summary (from a later pacing wave of the same turn)
// into this one.
func (d *DeliverySummary) Merge(o DeliverySummary) {
	d.UnitsAttempted += o.UnitsAttempted
	d.TTSGenerated += o.TTSGenerated
	d.TTSFailed += o.TTSFailed
	d.UnitsSent += o.UnitsSent
	d.SendFailed += o.SendFailed
	d.SendErrors = append(d.SendErrors, o.SendErrors...)
	d.GeneratedAudioSec += o.GeneratedAudioSec
	if o.SkippedReason != "" && d.SkippedReason == "" {
		d.SkippedReason = o.SkippedReason
	}
	if o.CallStatus != "" {
		d.CallStatus = o.CallStatus
	}
	if o.LastDeliveredIndex > d.LastDeliveredIndex {
		d.LastDeliveredIndex = o.LastDeliveredIndex
	}
	d.Interrupted = d.Interrupted || o.Interrupted
}
