package live

import "sync/atomic"

const (
	EventPortfolioUpdate = "portfolio:update"
	EventMarketUpdate    = "marketUpdate"
	EventNotification    = "notification"
	EventError           = "error"

	CommandSubscribe   = "subscribe:portfolio"
	CommandUnsubscribe = "unsubscribe:portfolio"
)

// Event is one outbound frame: {"event": "...", "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Session is one authenticated live connection. Its room memberships and
// outbound queue are owned by the Broadcaster.
type Session struct {
	ID     string
	UserID uint64

	send    chan Event
	rooms   map[uint64]struct{}
	closed  bool
	dropped atomic.Uint64
}

// Events is drained by the connection writer. It is closed on Disconnect.
func (s *Session) Events() <-chan Event {
	return s.send
}

// Dropped counts events discarded because the queue was full.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}
