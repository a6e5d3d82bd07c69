package cronrunner

import (
	"context"
	"testing"
	"time"
)

func TestRunner_AddRemove(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(nil, ctx)

	fired := make(chan struct{}, 4)
	id, err := r.Add("@every 1s", func(context.Context) { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	defer r.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never fired")
	}
	r.Remove(id)
	if n := len(r.cron.Entries()); n != 0 {
		t.Fatalf("entries=%d want 0", n)
	}
}

func TestRunner_BadSpec(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Add("not a spec", func(context.Context) {}); err == nil {
		t.Fatalf("expected parse error")
	}
}
