package presence

import (
	"testing"
	"time"

	"signage-server/internal/model"
)

func TestTierBoundaries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Tier
	}{
		{"just now", 0, TierOnline},
		{"one minute", time.Minute, TierOnline},
		{"just under two minutes", 2*time.Minute - time.Nanosecond, TierOnline},
		{"exactly two minutes", 2 * time.Minute, TierIdle},
		{"five minutes", 5 * time.Minute, TierIdle},
		{"just under ten minutes", 10*time.Minute - time.Nanosecond, TierIdle},
		{"exactly ten minutes", 10 * time.Minute, TierOffline},
		{"one day", 24 * time.Hour, TierOffline},
		{"clock skew in the future", -30 * time.Second, TierOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastSeen := now.Add(-tt.elapsed)
			if got := Classify(&lastSeen, now); got != tt.want {
				t.Errorf("Classify(%v ago) = %s, want %s", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestTierNilLastSeen(t *testing.T) {
	if got := Classify(nil, time.Now()); got != TierOffline {
		t.Errorf("Classify(nil) = %s, want offline", got)
	}
}

func TestTierCustomThresholds(t *testing.T) {
	th := Thresholds{Online: 30 * time.Second, Idle: time.Minute}
	now := time.Now()
	seen := now.Add(-45 * time.Second)
	if got := th.Tier(&seen, now); got != TierIdle {
		t.Errorf("Tier = %s, want idle", got)
	}
}

func TestIsMismatched(t *testing.T) {
	tests := []struct {
		stored string
		live   string
		tier   Tier
		want   bool
	}{
		{model.StoredStatusActive, model.LiveStatusOffline, TierOnline, true},
		{model.StoredStatusActive, model.LiveStatusIdle, TierOnline, true},
		{model.StoredStatusActive, model.LiveStatusError, TierOnline, true},
		{model.StoredStatusActive, model.LiveStatusPaused, TierOnline, true},
		{model.StoredStatusActive, "", TierOnline, true},
		{model.StoredStatusActive, model.LiveStatusOnline, TierOnline, false},
		{model.StoredStatusActive, model.LiveStatusPlaying, TierOnline, false},
		{model.StoredStatusActive, model.LiveStatusOffline, TierIdle, false},
		{model.StoredStatusActive, model.LiveStatusOffline, TierOffline, false},
	}
	for _, tt := range tests {
		if got := IsMismatched(tt.stored, tt.live, tt.tier); got != tt.want {
			t.Errorf("IsMismatched(%q, %q, %s) = %v, want %v", tt.stored, tt.live, tt.tier, got, tt.want)
		}
	}
}

func TestIsMismatchedRequiresActive(t *testing.T) {
	lives := []string{"", model.LiveStatusOnline, model.LiveStatusOffline, model.LiveStatusError, model.LiveStatusPlaying}
	tiers := []Tier{TierOnline, TierIdle, TierOffline}
	for _, stored := range []string{model.StoredStatusInactive, "", "unknown"} {
		for _, live := range lives {
			for _, tier := range tiers {
				if IsMismatched(stored, live, tier) {
					t.Errorf("IsMismatched(%q, %q, %s) = true, want false", stored, live, tier)
				}
			}
		}
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// 11 分钟没有心跳的 active 设备：offline，不算矛盾
	stale := now.Add(-11 * time.Minute)
	d1 := &model.Device{DeviceID: "D1", StoredStatus: model.StoredStatusActive, LastSeen: &stale}
	ev := DefaultThresholds.Evaluate(d1, now)
	if ev.Tier != TierOffline || ev.Mismatched {
		t.Errorf("D1 evaluation = %+v, want offline and consistent", ev)
	}

	// 60 秒前心跳却上报 offline：矛盾
	recent := now.Add(-60 * time.Second)
	offline := model.LiveStatusOffline
	d2 := &model.Device{DeviceID: "D2", StoredStatus: model.StoredStatusActive, LastSeen: &recent, LiveStatus: &offline}
	ev = DefaultThresholds.Evaluate(d2, now)
	if ev.Tier != TierOnline || !ev.Mismatched {
		t.Errorf("D2 evaluation = %+v, want online and mismatched", ev)
	}
	if ev.Elapsed != 60*time.Second {
		t.Errorf("Elapsed = %v, want 60s", ev.Elapsed)
	}
}
