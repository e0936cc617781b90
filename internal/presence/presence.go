// Package presence 根据最后心跳时间推导设备连通性
// 这里的函数都是纯函数，不做任何 I/O
package presence

import (
	"time"

	"signage-server/internal/model"
)

// Tier 由 now - last_seen 推导出的连通性分级
type Tier string

const (
	TierOnline  Tier = "online"
	TierIdle    Tier = "idle"
	TierOffline Tier = "offline"
)

// 默认分级阈值
const (
	DefaultOnlineWindow = 2 * time.Minute
	DefaultIdleWindow   = 10 * time.Minute
)

// Clock 提供当前时间，所有新鲜度窗口都相对于它计算
type Clock func() time.Time

// SystemClock 返回当前 UTC 时间
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Thresholds 分级阈值
// 落在边界上的时间归入更旧的一级
type Thresholds struct {
	Online time.Duration // 小于此值为 online
	Idle   time.Duration // 小于此值为 idle，否则 offline
}

// DefaultThresholds 2 分钟 / 10 分钟
var DefaultThresholds = Thresholds{
	Online: DefaultOnlineWindow,
	Idle:   DefaultIdleWindow,
}

// Tier 计算设备的连通性分级
// lastSeen 为空时视为 offline
func (t Thresholds) Tier(lastSeen *time.Time, now time.Time) Tier {
	if lastSeen == nil {
		return TierOffline
	}
	elapsed := now.Sub(*lastSeen)
	switch {
	case elapsed < t.Online:
		return TierOnline
	case elapsed < t.Idle:
		return TierIdle
	default:
		return TierOffline
	}
}

// Classify 使用默认阈值计算分级
func Classify(lastSeen *time.Time, now time.Time) Tier {
	return DefaultThresholds.Tier(lastSeen, now)
}

// IsMismatched 判断存储状态与运行状态是否矛盾
// 只有 "登记为 active、按时间应为 online、但运行状态既不是 online 也不是 playing" 才算矛盾
func IsMismatched(storedStatus, liveStatus string, tier Tier) bool {
	if storedStatus != model.StoredStatusActive {
		return false
	}
	if tier != TierOnline {
		return false
	}
	return liveStatus != model.LiveStatusOnline && liveStatus != model.LiveStatusPlaying
}

// Evaluation 单个设备的评估结果
type Evaluation struct {
	Tier       Tier          `json:"tier"`
	Mismatched bool          `json:"mismatched"`
	Elapsed    time.Duration `json:"-"`
}

// Evaluate 对设备记录做完整评估
func (t Thresholds) Evaluate(device *model.Device, now time.Time) Evaluation {
	tier := t.Tier(device.LastSeen, now)
	ev := Evaluation{
		Tier:       tier,
		Mismatched: IsMismatched(device.StoredStatus, device.LiveStatusValue(), tier),
	}
	if device.LastSeen != nil {
		ev.Elapsed = now.Sub(*device.LastSeen)
	}
	return ev
}
