// Package main 是服务端的入口点
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"signage-server/internal/cache"
	"signage-server/internal/config"
	"signage-server/internal/handler"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/internal/service"
	"signage-server/pkg/jwt"
	"signage-server/pkg/logger"
)

func main() {
	// 加载配置
	configDir := os.Getenv("SIGNAGE_CONFIG_DIR")
	if configDir == "" {
		configDir = "./configs"
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	// 初始化数据库
	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init database")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	// 自动迁移数据库表
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// 初始化在线索引（未启用 Redis 时为空实现）
	index, err := cache.NewPresenceIndex(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis")
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.DeviceExpire)
	clock := presence.Clock(presence.SystemClock)
	thresholds := presence.Thresholds{
		Online: cfg.Presence.OnlineWindow,
		Idle:   cfg.Presence.IdleWindow,
	}

	// 初始化 Repository 层
	deviceRepo := repository.NewDeviceRepository(db)
	commandRepo := repository.NewCommandRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	presentationRepo := repository.NewPresentationRepository(db)

	// 初始化 Service 层
	activityService := service.NewActivityService(activityRepo, clock, log)
	commandService := service.NewCommandService(commandRepo, deviceRepo, activityService,
		cfg.Commands.PollLimit, cfg.Commands.MaxAttempts, clock, log)
	deviceService := service.NewDeviceService(deviceRepo, presentationRepo, commandService, activityService,
		index, jwtService, thresholds, clock, log)
	reconcileService := service.NewReconcileService(deviceRepo, activityService, index, thresholds,
		service.ReconcileWindows{FixOne: cfg.Presence.FixOneWindow, FixAll: cfg.Presence.FixAllWindow}, clock, log)
	presentationService := service.NewPresentationService(presentationRepo, deviceRepo)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.Handlers{
		Device:      handler.NewDeviceHandler(deviceService, commandService, presentationService),
		Maintenance: handler.NewMaintenanceHandler(reconcileService),
		Admin:       handler.NewAdminHandler(deviceService, commandService, reconcileService, activityService),
	}, jwtService, log, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := index.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis")
	}
	if err := repository.Close(db); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}

	log.Info().Msg("server exited")
}
