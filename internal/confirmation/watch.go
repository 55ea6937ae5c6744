package confirmation

import (
	"context"
	"sync"

	"solana-tap-to-pay/internal/domain"
)

// Event is a state change of a watch.
type Event struct {
	WatchID      string
	State        domain.PollState
	CheckCount   int
	PayerAddress string // Confirmed only
	Signature    string // Confirmed only
	Err          error  // Exhausted after a ledger error
}

// Watch is a handle on one running payment watch.
type Watch struct {
	ID string

	mu        sync.Mutex
	state     domain.PollState
	checks    int
	maxChecks int
	payer     string
	signature string
	err       error
	cancelled bool

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

func newWatch(id string, maxChecks int, cancel context.CancelFunc) *Watch {
	return &Watch{
		ID:        id,
		state:     domain.PollPending,
		maxChecks: maxChecks,
		// Pending per check plus one terminal event; sends never block.
		events: make(chan Event, maxChecks+1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events delivers state changes. It is closed when the watch ends.
func (w *Watch) Events() <-chan Event {
	return w.events
}

// Done is closed once the polling goroutine has returned.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Cancel stops the watch. No state change or event happens after Cancel
// returns, even if a ledger call in flight resolves later. Safe to call
// more than once.
func (w *Watch) Cancel() {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()

	w.cancel()
}

// State returns the current state and check count.
func (w *Watch) State() (domain.PollState, int) {
	return w.snapshot()
}

// Payer returns the sender of the confirmed payment, if any.
func (w *Watch) Payer() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payer, w.state == domain.PollConfirmed
}

// Err returns the ledger error that exhausted the watch, if any.
func (w *Watch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watch) snapshot() (domain.PollState, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.checks
}

// live reports whether a transition is still allowed. Callers hold mu.
func (w *Watch) live() bool {
	return !w.cancelled && !w.state.Terminal()
}

func (w *Watch) confirm(rec domain.TransferRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.live() {
		return false
	}
	w.state = domain.PollConfirmed
	w.payer = rec.Sender
	w.signature = rec.Signature
	w.emit(Event{PayerAddress: rec.Sender, Signature: rec.Signature})
	return true
}

func (w *Watch) exhaust(err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.live() {
		return false
	}
	w.state = domain.PollExhausted
	w.err = err
	w.emit(Event{Err: err})
	return true
}

// advance records an unsuccessful check. It returns the new count, whether
// the watch became Exhausted, and false if the watch was already cancelled.
func (w *Watch) advance() (int, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.live() {
		return w.checks, false, false
	}
	w.checks++
	if w.checks >= w.maxChecks {
		w.state = domain.PollExhausted
	}
	w.emit(Event{})
	return w.checks, w.state.Terminal(), true
}

// emit fills in the common fields and queues ev. Callers hold mu.
func (w *Watch) emit(ev Event) {
	ev.WatchID = w.ID
	ev.State = w.state
	ev.CheckCount = w.checks
	w.events <- ev
}

func (w *Watch) close() {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()

	w.cancel()
	close(w.events)
	close(w.done)
}
