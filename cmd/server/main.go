package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/14-sea-battle/internal"
	"github.com/koopa0/system-design/14-sea-battle/internal/events"
	"github.com/koopa0/system-design/14-sea-battle/internal/limiter"
	"github.com/koopa0/system-design/14-sea-battle/pkg/logger"
)

func main() {
	// 解析命令行參數（優先於配置檔與環境變數）
	var (
		configPath = flag.String("config", "", "YAML 配置檔路徑")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設置日誌失敗: %v\n", err)
		os.Exit(1)
	}

	// 事件發布
	publisher := setupPublisher(cfg.Events, log)

	// 連線限流
	connLimiter, stopLimiter := setupLimiter(cfg.Limits, log)
	defer stopLimiter()

	// 創建協調器
	coordinator := internal.NewCoordinator(cfg.Game, publisher, nil, log)

	// 創建 WebSocket Hub
	wsHub := internal.NewWebSocketHub(coordinator, cfg.WebSocket, cfg.Limits, log.With("component", "websocket"))

	// 創建 HTTP 處理器
	handler := internal.NewHandler(coordinator, wsHub,
		limiter.Middleware(connLimiter, log.With("component", "limiter")),
		log.With("component", "http"))

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		log.Info("海戰服務器啟動",
			"port", cfg.Server.Port,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format,
			"nats", cfg.Events.NATSURL != "",
			"redis", cfg.Limits.RedisAddr != "")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		log.Error("服務器關閉失敗", "error", err)
	}

	// 關閉所有 WebSocket 連接，再停止協調器
	wsHub.Stop()
	coordinator.Stop()

	log.Info("服務器已關閉")
}

// setupPublisher 配置了 NATS 才發布事件；連線失敗時降級為不發布
func setupPublisher(cfg internal.EventsConfig, log *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.Nop{}
	}

	natsCfg := events.DefaultConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.SubjectPrefix = cfg.SubjectPrefix

	publisher, err := events.NewNATSPublisher(natsCfg, log.With("component", "events"))
	if err != nil {
		log.Warn("NATS 不可用，停用事件發布", "url", cfg.NATSURL, "error", err)
		return events.Nop{}
	}
	return publisher
}

// setupLimiter 配置了 Redis 時多實例共享連線限流，否則使用單機限流
func setupLimiter(cfg internal.LimitsConfig, log *slog.Logger) (limiter.Limiter, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := client.Ping(ctx).Err()
		if err == nil {
			l := limiter.NewRedis(client, "seabattle:conn:", int64(cfg.ConnectionsPerMinute), time.Minute)
			return l, func() { _ = client.Close() }
		}
		log.Warn("Redis 不可用，改用單機限流", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
	}

	local := limiter.NewLocal(cfg.ConnectionsPerMinute)
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := local.Prune(); n > 0 {
					log.Debug("清理閒置限流桶", "removed", n, "tracked", local.Len())
				}
			case <-stop:
				return
			}
		}
	}()
	return local, func() { close(stop) }
}
