// Package live fans portfolio, market and notification events out to
// connected client sessions.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"folio/internal/models"
)

const defaultSendBuffer = 64

var ErrClosed = errors.New("live: broadcaster closed")

// Store is the data the broadcaster reads and writes.
type Store interface {
	GetPortfolio(ctx context.Context, id uint64) (*models.Portfolio, error)
	GetPortfolioWithHoldings(ctx context.Context, id uint64) (*models.Portfolio, error)
	InsertNotification(ctx context.Context, item *models.Notification) error
}

// Broadcaster tracks sessions and their rooms. A session is always in its
// user's room and joins portfolio rooms through Subscribe. Sends never block:
// when a session's queue is full the event is dropped and counted.
type Broadcaster struct {
	repo       Store
	logger     *zap.Logger
	sendBuffer int

	mu             sync.RWMutex
	sessions       map[string]*Session
	portfolioRooms map[uint64]map[string]*Session
	userRooms      map[uint64]map[string]*Session
	closed         bool

	dropped atomic.Uint64
}

func New(repo Store, logger *zap.Logger, sendBuffer int) *Broadcaster {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		repo:           repo,
		logger:         logger,
		sendBuffer:     sendBuffer,
		sessions:       map[string]*Session{},
		portfolioRooms: map[uint64]map[string]*Session{},
		userRooms:      map[uint64]map[string]*Session{},
	}
}

// Connect registers a session for an already authenticated user.
func (b *Broadcaster) Connect(userID uint64) (*Session, error) {
	s := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan Event, b.sendBuffer),
		rooms:  map[uint64]struct{}{},
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.sessions[s.ID] = s
	join(b.userRooms, userID, s)
	b.logger.Debug("live session connected", zap.String("session_id", s.ID), zap.Uint64("user_id", userID))
	return s, nil
}

// Subscribe joins the portfolio room when the session's user owns the
// portfolio. Otherwise an error event goes to this session only.
func (b *Broadcaster) Subscribe(ctx context.Context, s *Session, portfolioID uint64) {
	if s == nil {
		return
	}
	var p *models.Portfolio
	var err error
	if b.repo != nil && portfolioID > 0 {
		p, err = b.repo.GetPortfolio(ctx, portfolioID)
	}
	if err != nil || p == nil || p.UserID != s.UserID {
		if err != nil {
			b.logger.Warn("live subscribe lookup failed", zap.Uint64("portfolio_id", portfolioID), zap.Error(err))
		}
		b.mu.RLock()
		b.deliver(s, Event{Name: EventError, Data: ErrorPayload{Message: "access denied"}})
		b.mu.RUnlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	join(b.portfolioRooms, portfolioID, s)
	s.rooms[portfolioID] = struct{}{}
}

func (b *Broadcaster) Unsubscribe(s *Session, portfolioID uint64) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	leave(b.portfolioRooms, portfolioID, s)
	delete(s.rooms, portfolioID)
}

// PublishPortfolioUpdate reloads the portfolio and sends it to the portfolio
// room and the owner's user room, once per session.
func (b *Broadcaster) PublishPortfolioUpdate(ctx context.Context, portfolioID uint64) {
	if b.repo == nil {
		return
	}
	p, err := b.repo.GetPortfolioWithHoldings(ctx, portfolioID)
	if err != nil {
		b.logger.Warn("live portfolio reload failed", zap.Uint64("portfolio_id", portfolioID), zap.Error(err))
		return
	}
	if p == nil {
		return
	}
	ev := Event{Name: EventPortfolioUpdate, Data: p}

	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[string]bool{}
	for id, s := range b.portfolioRooms[portfolioID] {
		seen[id] = true
		b.deliver(s, ev)
	}
	for id, s := range b.userRooms[p.UserID] {
		if !seen[id] {
			b.deliver(s, ev)
		}
	}
}

// PublishMarketUpdate sends the quote to every connected session.
func (b *Broadcaster) PublishMarketUpdate(quote models.MarketQuote) {
	ev := Event{Name: EventMarketUpdate, Data: quote}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sessions {
		b.deliver(s, ev)
	}
}

// NotifyUser persists the notification, then sends it to the user's room.
func (b *Broadcaster) NotifyUser(ctx context.Context, userID uint64, message, notificationType string, data any) error {
	n := models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Message: message,
	}
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		n.Data = datatypes.JSON(raw)
	}
	if b.repo != nil {
		if err := b.repo.InsertNotification(ctx, &n); err != nil {
			return err
		}
	}

	ev := Event{Name: EventNotification, Data: n}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.userRooms[userID] {
		b.deliver(s, ev)
	}
	return nil
}

// Disconnect removes the session from every room and closes its queue.
func (b *Broadcaster) Disconnect(s *Session) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(s)
}

// Close disconnects every session. Later Connect calls fail with ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.sessions {
		b.removeLocked(s)
	}
	b.logger.Info("live broadcaster closed", zap.Uint64("dropped", b.dropped.Load()))
}

func (b *Broadcaster) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// RoomSize is the number of sessions subscribed to the portfolio room.
func (b *Broadcaster) RoomSize(portfolioID uint64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.portfolioRooms[portfolioID])
}

// Dropped counts events discarded across all sessions.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broadcaster) removeLocked(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	for pid := range s.rooms {
		leave(b.portfolioRooms, pid, s)
	}
	s.rooms = map[uint64]struct{}{}
	leave(b.userRooms, s.UserID, s)
	delete(b.sessions, s.ID)
	close(s.send)
	b.logger.Debug("live session disconnected", zap.String("session_id", s.ID), zap.Uint64("dropped", s.Dropped()))
}

// deliver requires b.mu held; queues are only closed under the write lock.
func (b *Broadcaster) deliver(s *Session, ev Event) {
	if s.closed {
		return
	}
	select {
	case s.send <- ev:
	default:
		s.dropped.Add(1)
		b.dropped.Add(1)
	}
}

func join(rooms map[uint64]map[string]*Session, key uint64, s *Session) {
	room := rooms[key]
	if room == nil {
		room = map[string]*Session{}
		rooms[key] = room
	}
	room[s.ID] = s
}

func leave(rooms map[uint64]map[string]*Session, key uint64, s *Session) {
	room := rooms[key]
	if room == nil {
		return
	}
	delete(room, s.ID)
	if len(room) == 0 {
		delete(rooms, key)
	}
}
