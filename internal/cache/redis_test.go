package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"signage-server/internal/config"
	"signage-server/internal/presence"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTouchAndCounts(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seen := map[string]time.Duration{
		"a": 10 * time.Second,
		"b": 90 * time.Second,
		"c": 2 * time.Minute, // 恰好 2 分钟归入 idle
		"d": 9 * time.Minute,
		"e": 10 * time.Minute, // 恰好 10 分钟归入 offline
		"f": time.Hour,
	}
	for id, ago := range seen {
		if err := c.Touch(ctx, id, now.Add(-ago)); err != nil {
			t.Fatalf("Touch(%s): %v", id, err)
		}
	}

	counts, err := c.Counts(ctx, now, presence.DefaultThresholds)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Online != 2 || counts.Idle != 2 {
		t.Errorf("counts = %+v, want online=2 idle=2", counts)
	}
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := c.Touch(ctx, "a", now); err != nil {
		t.Fatal(err)
	}
	if err := c.Touch(ctx, "a", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	counts, err := c.Counts(ctx, now, presence.DefaultThresholds)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Online != 1 {
		t.Errorf("online = %d, want 1", counts.Online)
	}
}

func TestPublishStatus(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	sub := c.SubscribeStatus(ctx)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	at := time.Unix(1714564800, 0)
	if err := c.PublishStatus(ctx, "D2", "online", at); err != nil {
		t.Fatal(err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev StatusEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.DeviceID != "D2" || ev.Status != "online" || ev.Timestamp != at.Unix() {
		t.Errorf("event = %+v", ev)
	}
}

func TestNewPresenceIndexDisabled(t *testing.T) {
	idx, err := NewPresenceIndex(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := idx.(NopIndex); !ok {
		t.Fatalf("expected NopIndex, got %T", idx)
	}
	if _, err := idx.Counts(context.Background(), time.Now(), presence.DefaultThresholds); !errors.Is(err, ErrIndexDisabled) {
		t.Errorf("Counts err = %v, want ErrIndexDisabled", err)
	}
}
