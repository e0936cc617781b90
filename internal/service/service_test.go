package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"signage-server/internal/cache"
	"signage-server/internal/config"
	"signage-server/internal/model"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/pkg/jwt"
)

var (
	bg      = context.Background()
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testEnv 一组共享同一个 sqlite 数据库的服务
type testEnv struct {
	db            *gorm.DB
	clock         *fakeClock
	activity      *ActivityService
	commands      *CommandService
	devices       *DeviceService
	reconcile     *ReconcileService
	presentations *PresentationService
}

type envOption func(*envOptions)

type envOptions struct {
	maxAttempts int
	pollLimit   int
	index       cache.PresenceIndex
}

func withMaxAttempts(n int) envOption { return func(o *envOptions) { o.maxAttempts = n } }
func withPollLimit(n int) envOption   { return func(o *envOptions) { o.pollLimit = n } }
func withIndex(idx cache.PresenceIndex) envOption {
	return func(o *envOptions) { o.index = idx }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	o := envOptions{index: cache.NopIndex{}}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		},
	}
	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	t.Cleanup(func() { _ = repository.Close(db) })

	clock := &fakeClock{now: testNow}
	log := zerolog.Nop()

	deviceRepo := repository.NewDeviceRepository(db)
	commandRepo := repository.NewCommandRepository(db)
	presentationRepo := repository.NewPresentationRepository(db)

	env := &testEnv{db: db, clock: clock}
	env.activity = NewActivityService(repository.NewActivityRepository(db), clock.Now, log)
	env.commands = NewCommandService(commandRepo, deviceRepo, env.activity, o.pollLimit, o.maxAttempts, clock.Now, log)
	env.devices = NewDeviceService(
		deviceRepo,
		presentationRepo,
		env.commands,
		env.activity,
		o.index,
		jwt.NewJWTService("test-secret", 720*time.Hour),
		presence.DefaultThresholds,
		clock.Now,
		log,
	)
	env.reconcile = NewReconcileService(deviceRepo, env.activity, o.index, presence.DefaultThresholds, ReconcileWindows{}, clock.Now, log)
	env.presentations = NewPresentationService(presentationRepo, deviceRepo)
	return env
}

// register 注册设备，失败时终止测试
func (e *testEnv) register(t *testing.T, deviceID string) *model.Device {
	t.Helper()
	res, err := e.devices.Register(bg, RegisterRequest{DeviceID: deviceID}, "10.0.0.1")
	if err != nil {
		t.Fatalf("Register(%s): %v", deviceID, err)
	}
	return res.Device
}

// heartbeat 以指定状态发送心跳
func (e *testEnv) heartbeat(t *testing.T, deviceID, status string) *HeartbeatResult {
	t.Helper()
	req := HeartbeatRequest{DeviceID: deviceID}
	if status != "" {
		req.Status = &status
	}
	res, err := e.devices.Heartbeat(bg, req, "10.0.0.1")
	if err != nil {
		t.Fatalf("Heartbeat(%s): %v", deviceID, err)
	}
	return res
}

// activityMessages 返回设备的活动日志内容，按时间倒序
func (e *testEnv) activityMessages(t *testing.T, deviceID, category string) []string {
	t.Helper()
	entries, err := e.activity.List(bg, deviceID, category, 0)
	if err != nil {
		t.Fatal(err)
	}
	msgs := make([]string, len(entries))
	for i, en := range entries {
		msgs[i] = en.Message
	}
	return msgs
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
