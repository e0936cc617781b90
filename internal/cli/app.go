package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"signage-server/internal/cache"
	"signage-server/internal/config"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/internal/service"
	"signage-server/pkg/logger"
)

// app 命令运行所需的依赖
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	db        *gorm.DB
	index     cache.PresenceIndex
	reconcile *service.ReconcileService
}

// newApp 加载配置并连接数据库
// migrate 为 true 时先执行表结构迁移
func newApp(migrate bool) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log := logger.New(cfg.Log)

	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if migrate {
		if err := repository.AutoMigrate(db); err != nil {
			_ = repository.Close(db)
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	index, err := cache.NewPresenceIndex(cfg)
	if err != nil {
		// 在线索引只用于通知，不影响修复
		log.Warn().Err(err).Msg("redis unavailable, status changes will not be published")
		index = cache.NopIndex{}
	}

	clock := presence.Clock(presence.SystemClock)
	thresholds := presence.Thresholds{Online: cfg.Presence.OnlineWindow, Idle: cfg.Presence.IdleWindow}
	activity := service.NewActivityService(repository.NewActivityRepository(db), clock, log)
	reconcile := service.NewReconcileService(
		repository.NewDeviceRepository(db),
		activity,
		index,
		thresholds,
		service.ReconcileWindows{FixOne: cfg.Presence.FixOneWindow, FixAll: cfg.Presence.FixAllWindow},
		clock,
		log,
	)

	return &app{cfg: cfg, log: log, db: db, index: index, reconcile: reconcile}, nil
}

// Close 释放数据库与 Redis 连接
func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close redis")
	}
	if err := repository.Close(a.db); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}
