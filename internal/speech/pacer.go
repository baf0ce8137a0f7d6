package speech

// Pacer decides when and how much chunked text to hand to TTS generation.
// The very first unit of a response goes out immediately to minimize
// time-to-first-audio; after that, units accumulate until either the batch
// reaches MaxBatchChars or the playback buffer drains to LowWaterSec.
// Running out of audio produces an audible gap, which is worse than a
// slightly small batch, so the low-water condition submits whatever has
// accumulated.
//
// Next performs no I/O and is deterministic given its inputs and the
// first-unit flag, which resets per response.
type Pacer struct {
	// MaxBatchChars caps the combined character length of one submission.
	MaxBatchChars int
	// LowWaterSec is the remaining-audio threshold that forces a submission.
	LowWaterSec float64

	firstSent bool
}

// NewPacer returns a pacer for a single response.
func NewPacer(maxBatchChars int, lowWaterSec float64) *Pacer {
	if maxBatchChars <= 0 {
		maxBatchChars = 300
	}
	return &Pacer{MaxBatchChars: maxBatchChars, LowWaterSec: lowWaterSec}
}

// Reset prepares the pacer for a new response.
func (p *Pacer) Reset() { p.firstSent = false }

// Next returns the units to submit to TTS now and the remaining pending
// units. remainingAudioSec is the caller-computed estimate of already
// generated, not-yet-played audio. An empty submit slice means "wait".
func (p *Pacer) Next(pending []ResponseUnit, remainingAudioSec float64) (submit, rest []ResponseUnit) {
	if len(pending) == 0 {
		return nil, nil
	}

	// First unit: always alone, always immediately.
	if !p.firstSent {
		p.firstSent = true
		return pending[:1], pending[1:]
	}

	total := 0
	for _, u := range pending {
		total += len(u.Text)
	}
	if total < p.MaxBatchChars && remainingAudioSec > p.LowWaterSec {
		return nil, pending
	}

	// Take units up to the batch cap, at least one.
	taken := 0
	size := 0
	for _, u := range pending {
		if taken > 0 && size+len(u.Text) > p.MaxBatchChars {
			break
		}
		size += len(u.Text)
		taken++
	}
	return pending[:taken], pending[taken:]
}
