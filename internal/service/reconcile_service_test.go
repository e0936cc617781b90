package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"signage-server/internal/cache"
	"signage-server/internal/model"
	"signage-server/internal/presence"
)

// 注册后 11 分钟没有心跳：离线但不算矛盾，也不能被修复
func TestSilentDeviceIsOfflineNotMismatched(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "D1")
	env.clock.Advance(11 * time.Minute)

	view, err := env.reconcile.CheckOne(bg, "D1")
	if err != nil {
		t.Fatal(err)
	}
	if view.Tier != presence.TierOffline || view.Mismatched {
		t.Fatalf("tier=%s mismatched=%v, want offline/false", view.Tier, view.Mismatched)
	}

	fixed, err := env.reconcile.FixOne(bg, "D1", "")
	if err != nil {
		t.Fatal(err)
	}
	if fixed {
		t.Error("FixOne should refuse a device outside the fix window")
	}
}

// 心跳误报 offline，一分钟后检测到矛盾并修复
func TestFixOneRepairsMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.heartbeat(t, "D2", model.LiveStatusOffline)
	env.clock.Advance(60 * time.Second)

	view, err := env.reconcile.CheckOne(bg, "D2")
	if err != nil {
		t.Fatal(err)
	}
	if view.Tier != presence.TierOnline || !view.Mismatched {
		t.Fatalf("tier=%s mismatched=%v, want online/true", view.Tier, view.Mismatched)
	}

	fixed, err := env.reconcile.FixOne(bg, "D2", "")
	if err != nil {
		t.Fatal(err)
	}
	if !fixed {
		t.Fatal("FixOne returned false")
	}

	view, err = env.reconcile.CheckOne(bg, "D2")
	if err != nil {
		t.Fatal(err)
	}
	if view.Mismatched || view.LiveStatusValue() != model.LiveStatusOnline {
		t.Fatalf("after fix: mismatched=%v live=%s", view.Mismatched, view.LiveStatusValue())
	}
}

func TestFixOneIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.heartbeat(t, "D2", model.LiveStatusError)
	if err := env.devices.Deactivate(bg, "D2", ""); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(5 * time.Minute)

	for i := 0; i < 2; i++ {
		fixed, err := env.reconcile.FixOne(bg, "D2", "")
		if err != nil {
			t.Fatal(err)
		}
		if !fixed {
			t.Fatalf("call %d: FixOne returned false inside the 10 minute window", i+1)
		}
		view, err := env.reconcile.CheckOne(bg, "D2")
		if err != nil {
			t.Fatal(err)
		}
		if view.StoredStatus != model.StoredStatusActive || view.LiveStatusValue() != model.LiveStatusOnline {
			t.Fatalf("call %d: stored=%s live=%s", i+1, view.StoredStatus, view.LiveStatusValue())
		}
	}

	// 每次成功修复都记录日志
	if msgs := env.activityMessages(t, "D2", model.ActivityMaintenance); len(msgs) != 3 {
		t.Errorf("maintenance activity = %v, want deactivate + 2 fixes", msgs)
	}
}

func TestFixOneUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.reconcile.FixOne(bg, "ghost", ""); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
	if _, err := env.reconcile.CheckOne(bg, "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestFixAllOnlyTouchesFreshMismatches(t *testing.T) {
	env := newTestEnv(t)

	// 5 分钟前误报 offline：超出批量修复窗口
	env.heartbeat(t, "stale", model.LiveStatusOffline)
	env.clock.Advance(4 * time.Minute)

	env.heartbeat(t, "paused", model.LiveStatusPaused)
	env.heartbeat(t, "playing", model.LiveStatusPlaying)
	env.heartbeat(t, "inactive", model.LiveStatusIdle)
	if err := env.devices.Deactivate(bg, "inactive", ""); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(time.Minute)

	issues, err := env.reconcile.GetAllIssues(bg)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 || issues[0].DeviceID != "paused" {
		t.Fatalf("issues = %+v, want only paused", issues)
	}

	n, err := env.reconcile.FixAll(bg, "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("FixAll fixed %d, want 1", n)
	}

	want := map[string]string{
		"stale":    model.LiveStatusOffline,
		"paused":   model.LiveStatusOnline,
		"playing":  model.LiveStatusPlaying,
		"inactive": model.LiveStatusIdle,
	}
	for id, status := range want {
		view, err := env.devices.Get(bg, id)
		if err != nil {
			t.Fatal(err)
		}
		if view.LiveStatusValue() != status {
			t.Errorf("%s live_status = %s, want %s", id, view.LiveStatusValue(), status)
		}
	}

	// 批量修复只记录一条汇总日志
	entries, err := env.activity.List(bg, "", model.ActivityMaintenance, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Message != "Fixed 1 device(s) with mismatched status" || entries[0].DeviceID != nil {
		t.Errorf("maintenance entries = %+v", entries)
	}

	again, err := env.reconcile.FixAll(bg, "")
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("second FixAll fixed %d, want 0", again)
	}
}

func TestSummaryFromDatabase(t *testing.T) {
	env := newTestEnv(t)
	env.heartbeat(t, "gone", "")
	env.clock.Advance(20 * time.Minute)
	env.heartbeat(t, "idle", "")
	env.clock.Advance(5 * time.Minute)
	env.heartbeat(t, "online", "")
	env.heartbeat(t, "broken", model.LiveStatusError)

	sum, err := env.reconcile.Summary(bg)
	if err != nil {
		t.Fatal(err)
	}
	want := PresenceSummary{Online: 2, Idle: 1, Offline: 1, Total: 4, Mismatched: 1, Source: "database"}
	if *sum != want {
		t.Errorf("summary = %+v, want %+v", *sum, want)
	}
}

func TestSummaryFromRedisIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	index := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = index.Close() })

	env := newTestEnv(t, withIndex(index))
	env.heartbeat(t, "idle", "")
	env.clock.Advance(5 * time.Minute)
	env.heartbeat(t, "online", "")

	sum, err := env.reconcile.Summary(bg)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != "redis" || sum.Online != 1 || sum.Idle != 1 || sum.Offline != 0 || sum.Total != 2 {
		t.Errorf("summary = %+v", *sum)
	}
}

func TestStatusChangesArePublished(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	index := cache.NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = index.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := index.SubscribeStatus(ctx)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t, withIndex(index))
	env.heartbeat(t, "D1", model.LiveStatusPaused)

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Payload == "" {
		t.Fatal("empty status event")
	}
}
