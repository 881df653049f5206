package orchestrator

import (
	"sync"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// Sink receives one outgoing event. The session layer points this at the
// connection's output queue; it must not block, and it may be called from
// the single-flight goroutine as well as the request's own.
type Sink func(protocol.ServerEnvelope)

// emitter serializes the event stream for one request id. Sequence
// numbers start at 1 and increase by one per emitted frame. The first
// terminal frame latches the emitter: anything after it is dropped, so a
// cancelled request never sees a late complete or error event.
type emitter struct {
	mu        sync.Mutex
	sink      Sink
	requestID string
	seq       int
	done      bool
}

func newEmitter(sink Sink, requestID string) *emitter {
	if sink == nil {
		sink = func(protocol.ServerEnvelope) {}
	}
	return &emitter{sink: sink, requestID: requestID}
}

// status emits a non-terminal progress event.
func (e *emitter) status(status protocol.Status, message string, progress int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.seq++
	e.sink(protocol.NewStatusUpdateWithProgress(e.requestID, e.seq, status, message, progress))
}

// respond emits the terminal diagram_response and latches.
func (e *emitter) respond(data protocol.DiagramResponseData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	e.seq++
	e.sink(protocol.NewDiagramResponse(e.requestID, e.seq, data))
}

// fail emits the terminal error event and latches.
func (e *emitter) fail(code, message, details string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	e.seq++
	e.sink(protocol.NewError(e.requestID, e.seq, code, message, details))
}
