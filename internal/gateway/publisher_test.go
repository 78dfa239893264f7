package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPublisher(rdb, zerolog.Nop())
}

func TestPublisherRoundTripsUserAndGroupEnvelopes(t *testing.T) {
	t.Parallel()
	pub := newTestPublisher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct {
		kind  pushKind
		id    uint32
		frame []byte
	}
	got := make(chan received, 4)

	ready := make(chan struct{})
	go func() {
		_ = pub.Subscribe(ctx, func(kind pushKind, id uint32, frame []byte) {
			got <- received{kind, id, frame}
		})
	}()
	// Give the subscriber time to establish before publishing; miniredis delivers pub/sub synchronously once
	// subscribed but the goroutine above needs a moment to reach Subscribe.
	time.Sleep(50 * time.Millisecond)
	close(ready)
	<-ready

	pub.PublishToUser(ctx, 7, []byte("hello"))
	pub.PublishToGroup(ctx, 10, []byte("world"))

	seen := map[uint32][]byte{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-got:
			seen[r.id] = r.frame
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published envelope")
		}
	}

	if string(seen[7]) != "hello" {
		t.Errorf("user envelope frame = %q, want %q", seen[7], "hello")
	}
	if string(seen[10]) != "world" {
		t.Errorf("group envelope frame = %q, want %q", seen[10], "world")
	}
}
