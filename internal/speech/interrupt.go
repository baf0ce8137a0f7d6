package speech

import "sync"

// ActiveTurn tracks the response turn currently being delivered for one bot,
// so that incoming speech can interrupt it without waiting behind it.
type ActiveTurn struct {
	mu     sync.Mutex
	token  *CancelToken
	turnID string
}

// Begin registers a new delivery and returns its cancel token. Any previous
// turn still registered is hard-cancelled first.
func (a *ActiveTurn) Begin(turnID string) *CancelToken {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil {
		a.token.CancelHard()
	}
	a.token = NewCancelToken()
	a.turnID = turnID
	return a.token
}

// End clears the registration if it still belongs to turnID.
func (a *ActiveTurn) End(turnID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.turnID == turnID {
		a.token = nil
		a.turnID = ""
	}
}

// Delivering reports whether a turn is currently playing out.
func (a *ActiveTurn) Delivering() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != nil && !a.token.Cancelled()
}

// Interrupt cancels the in-flight turn, hard or soft. It reports the turn
// that was cancelled and the last unit index it had delivered.
func (a *ActiveTurn) Interrupt(hard bool) (turnID string, lastDelivered int64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return "", -1, false
	}
	if hard {
		a.token.CancelHard()
	} else {
		a.token.CancelSoft()
	}
	return a.turnID, a.token.LastDeliveredIndex(), true
}
