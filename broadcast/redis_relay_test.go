package broadcast

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestRedisRelayFansOutAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	newInstance := func() (*Hub, *RedisRelay, *fakeObserver) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		hub := NewHub(zaptest.NewLogger(t), nil)
		obs := newFakeObserver(true)
		hub.Add(obs)
		relay := NewRedisRelay(client, "match-events", hub, zaptest.NewLogger(t))
		if err := relay.Start(ctx); err != nil {
			t.Fatalf("start relay: %v", err)
		}
		t.Cleanup(func() { _ = relay.Close() })
		return hub, relay, obs
	}

	_, publisher, local := newInstance()
	_, _, remote := newInstance()

	publisher.Broadcast(ctx, NewMatchEvent(EventMatchCreated, sampleMatch()))

	waitFor(t, func() bool { return len(local.messages()) == 1 && len(remote.messages()) == 1 })
}

func TestRedisRelayFallsBackToLocalDelivery(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(nil, nil)
	obs := newFakeObserver(true)
	hub.Add(obs)
	relay := NewRedisRelay(client, "match-events", hub, zaptest.NewLogger(t))

	mr.Close()
	relay.Broadcast(context.Background(), NewMatchEvent(EventMatchUpdated, sampleMatch()))

	if got := len(obs.messages()); got != 1 {
		t.Fatalf("expected local delivery after publish failure, got %d", got)
	}
}

func TestRedisRelayCloseWithoutStart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	relay := NewRedisRelay(client, "c", NewHub(nil, nil), nil)
	if err := relay.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
