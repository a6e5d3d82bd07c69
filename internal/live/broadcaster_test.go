package live

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/repository"
	"folio/internal/repository/memory"
)

func setup(t *testing.T) (*Broadcaster, *memory.Store, *models.Portfolio) {
	t.Helper()
	repo := memory.New()
	p := &models.Portfolio{UserID: 1, Name: "main", Cash: decimal.NewFromInt(100)}
	if err := repo.CreatePortfolio(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	return New(repo, nil, 8), repo, p
}

func drain(s *Session) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBroadcaster_DoubleSubscribeDeliversOnce(t *testing.T) {
	b, _, p := setup(t)
	ctx := context.Background()
	s, err := b.Connect(1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	b.Subscribe(ctx, s, p.ID)
	b.Subscribe(ctx, s, p.ID)

	b.PublishPortfolioUpdate(ctx, p.ID)
	evs := drain(s)
	if len(evs) != 1 {
		t.Fatalf("events=%d want 1", len(evs))
	}
	if evs[0].Name != EventPortfolioUpdate {
		t.Fatalf("event=%q", evs[0].Name)
	}
	got, ok := evs[0].Data.(*models.Portfolio)
	if !ok || got.ID != p.ID {
		t.Fatalf("data=%#v", evs[0].Data)
	}
}

func TestBroadcaster_SubscribeAccessDenied(t *testing.T) {
	b, _, p := setup(t)
	ctx := context.Background()
	intruder, _ := b.Connect(2)
	bystander, _ := b.Connect(3)

	b.Subscribe(ctx, intruder, p.ID)
	evs := drain(intruder)
	if len(evs) != 1 || evs[0].Name != EventError {
		t.Fatalf("events=%+v want one error", evs)
	}
	if msg := evs[0].Data.(ErrorPayload).Message; msg != "access denied" {
		t.Fatalf("message=%q", msg)
	}
	if n := len(drain(bystander)); n != 0 {
		t.Fatalf("bystander got %d events", n)
	}

	b.PublishPortfolioUpdate(ctx, p.ID)
	if n := len(drain(intruder)); n != 0 {
		t.Fatalf("intruder received %d portfolio events", n)
	}
}

func TestBroadcaster_OwnerRoomReceivesWithoutSubscribe(t *testing.T) {
	b, _, p := setup(t)
	ctx := context.Background()
	a, _ := b.Connect(1)
	c, _ := b.Connect(1)
	b.Subscribe(ctx, a, p.ID)

	b.PublishPortfolioUpdate(ctx, p.ID)
	if n := len(drain(a)); n != 1 {
		t.Fatalf("subscribed session events=%d want 1", n)
	}
	if n := len(drain(c)); n != 1 {
		t.Fatalf("owner session events=%d want 1", n)
	}
}

func TestBroadcaster_UnsubscribeIdempotent(t *testing.T) {
	b, _, p := setup(t)
	ctx := context.Background()
	s, _ := b.Connect(1)
	b.Subscribe(ctx, s, p.ID)
	b.Unsubscribe(s, p.ID)
	b.Unsubscribe(s, p.ID)
	b.Unsubscribe(s, 999)
	if _, ok := b.portfolioRooms[p.ID]; ok {
		t.Fatalf("room not cleaned up")
	}
}

func TestBroadcaster_MarketUpdateToAll(t *testing.T) {
	b, _, _ := setup(t)
	s1, _ := b.Connect(1)
	s2, _ := b.Connect(2)
	b.PublishMarketUpdate(models.MarketQuote{Symbol: "AAPL", Price: decimal.NewFromInt(190)})
	for _, s := range []*Session{s1, s2} {
		evs := drain(s)
		if len(evs) != 1 || evs[0].Name != EventMarketUpdate {
			t.Fatalf("session %s events=%+v", s.ID, evs)
		}
	}
}

func TestBroadcaster_NotifyUserPersistsThenSends(t *testing.T) {
	b, repo, _ := setup(t)
	ctx := context.Background()
	mine, _ := b.Connect(1)
	other, _ := b.Connect(2)

	if err := b.NotifyUser(ctx, 1, "price alert", models.NotificationPrice, map[string]string{"symbol": "AAPL"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	items, _ := repo.ListNotifications(ctx, repository.ListNotificationsParams{UserID: 1})
	if len(items) != 1 || items[0].Message != "price alert" || items[0].Type != models.NotificationPrice {
		t.Fatalf("stored=%+v", items)
	}
	if string(items[0].Data) != `{"symbol":"AAPL"}` {
		t.Fatalf("data=%s", items[0].Data)
	}
	evs := drain(mine)
	if len(evs) != 1 || evs[0].Name != EventNotification {
		t.Fatalf("events=%+v", evs)
	}
	if n := len(drain(other)); n != 0 {
		t.Fatalf("other user got %d events", n)
	}
}

func TestBroadcaster_FullQueueDrops(t *testing.T) {
	repo := memory.New()
	b := New(repo, nil, 2)
	s, _ := b.Connect(1)
	for i := 0; i < 5; i++ {
		b.PublishMarketUpdate(models.MarketQuote{Symbol: "AAPL"})
	}
	if n := len(drain(s)); n != 2 {
		t.Fatalf("queued=%d want 2", n)
	}
	if s.Dropped() != 3 || b.Dropped() != 3 {
		t.Fatalf("dropped session=%d total=%d want 3", s.Dropped(), b.Dropped())
	}
}

func TestBroadcaster_DisconnectAndClose(t *testing.T) {
	b, _, p := setup(t)
	ctx := context.Background()
	s, _ := b.Connect(1)
	b.Subscribe(ctx, s, p.ID)
	b.Disconnect(s)
	b.Disconnect(s)

	if _, ok := <-s.Events(); ok {
		t.Fatalf("queue still open")
	}
	if b.SessionCount() != 0 || len(b.portfolioRooms) != 0 || len(b.userRooms) != 0 {
		t.Fatalf("state not cleaned: sessions=%d rooms=%d users=%d", b.SessionCount(), len(b.portfolioRooms), len(b.userRooms))
	}
	// publishing to a disconnected session must not panic
	b.PublishPortfolioUpdate(ctx, p.ID)

	s2, _ := b.Connect(1)
	b.Close()
	if _, ok := <-s2.Events(); ok {
		t.Fatalf("queue open after close")
	}
	if _, err := b.Connect(1); err != ErrClosed {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}
