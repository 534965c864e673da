package runner

import "sync"

// Event types delivered to log stream subscribers.
const (
	EventLog   = "log"
	EventEnd   = "end"
	EventStop  = "stop"
	EventError = "error"
)

const (
	DefaultReplaySize       = 500
	DefaultClientBufferSize = 256
)

// Event is one message on a run's log stream. Log events carry the
// formatted line as a string; terminal events carry a structured payload.
type Event struct {
	Type string
	Data any
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type != EventLog
}

// hub fans one run's events out to subscribers. It keeps the most recent
// events so late subscribers see the run from its start.
type hub struct {
	mu         sync.Mutex
	history    []Event
	replay     int
	bufferSize int
	clients    map[int]chan Event
	nextID     int
	closed     bool
}

func newHub(replay, bufferSize int) *hub {
	return &hub{
		replay:     replay,
		bufferSize: bufferSize,
		clients:    make(map[int]chan Event),
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.history = append(h.history, e)
	if over := len(h.history) - h.replay; over > 0 {
		h.history = append(h.history[:0:0], h.history[over:]...)
	}

	for id, ch := range h.clients {
		select {
		case ch <- e:
		default:
			// Slow client: disconnect rather than block the run.
			close(ch)
			delete(h.clients, id)
		}
	}
}

// close publishes the terminal event and ends every subscription.
func (h *hub) close(final Event) {
	h.publish(final)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// subscribe returns a channel primed with the replay history. The channel
// is closed after the terminal event, or at once if the run has ended.
func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, len(h.history)+h.bufferSize)
	for _, e := range h.history {
		ch <- e
	}
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.clients[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.clients[id]; ok {
			close(c)
			delete(h.clients, id)
		}
	}
	return ch, cancel
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
