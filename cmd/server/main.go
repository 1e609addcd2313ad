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

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/api/handler"
	"github.com/thtun0709/beswd/internal/api/router"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/repository"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/database"
	"github.com/thtun0709/beswd/pkg/jwt"
	applogger "github.com/thtun0709/beswd/pkg/logger"
	"github.com/thtun0709/beswd/pkg/mailer"
	"github.com/thtun0709/beswd/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("lock_timeout", cfg.Database.LockTimeout),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流、找回密码与实时推送将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 外部协作方
	deps := service.Deps{
		JWT:    jwt.NewManager(&cfg.Auth),
		Mailer: mailer.New(cfg.Mail, logger),
	}
	if rdb != nil {
		deps.Tokens = rdb
		if cfg.Realtime.Enabled {
			deps.Dispatcher = notify.NewRedisDispatcher(rdb, cfg.Realtime, logger)
		}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = notify.NewLogDispatcher(logger)
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db, repository.WithLockTimeout(cfg.Database.LockTimeout))
	svc := service.NewService(cfg, repo, deps, logger)
	h := handler.NewHandler(svc, cfg.IsProduction())

	// 7. 初始化路由
	engine := router.Setup(cfg, h, deps.JWT, rdb, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
