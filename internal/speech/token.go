package speech

import (
	"sync"
	"sync/atomic"
)

// CancelToken coordinates interruption of an in-flight response turn.
// A soft cancel lets the unit currently playing finish and drops the rest;
// a hard cancel abandons everything immediately.
type CancelToken struct {
	soft chan struct{}
	hard chan struct{}

	softOnce sync.Once
	hardOnce sync.Once

	lastDelivered atomic.Int64
}

func NewCancelToken() *CancelToken {
	t := &CancelToken{
		soft: make(chan struct{}),
		hard: make(chan struct{}),
	}
	t.lastDelivered.Store(-1)
	return t
}

func (t *CancelToken) CancelSoft() {
	t.softOnce.Do(func() { close(t.soft) })
}

// CancelHard implies a soft cancel as well.
func (t *CancelToken) CancelHard() {
	t.hardOnce.Do(func() { close(t.hard) })
	t.CancelSoft()
}

func (t *CancelToken) SoftCancelled() bool {
	select {
	case <-t.soft:
		return true
	default:
		return false
	}
}

func (t *CancelToken) HardCancelled() bool {
	select {
	case <-t.hard:
		return true
	default:
		return false
	}
}

// Done is closed once the token is cancelled; hard cancel implies soft, so
// the soft channel covers both.
func (t *CancelToken) Done() <-chan struct{} { return t.soft }

func (t *CancelToken) Cancelled() bool {
	return t.SoftCancelled() || t.HardCancelled()
}

// LastDeliveredIndex reports the highest unit index delivered to the sink
// under this token, or -1 when nothing was delivered.
func (t *CancelToken) LastDeliveredIndex() int64 {
	return t.lastDelivered.Load()
}

func (t *CancelToken) recordDelivered(idx uint32) {
	v := int64(idx)
	for {
		cur := t.lastDelivered.Load()
		if v <= cur || t.lastDelivered.CompareAndSwap(cur, v) {
			return
		}
	}
}
