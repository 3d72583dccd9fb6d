package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/online-gobang/internal"
	"github.com/koopa0/online-gobang/pkg/logger"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "config.yaml", "配置檔路徑")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
		natsURL    = flag.String("nats-url", "", "NATS 地址，設置後發布遊戲事件")
	)
	flag.Parse()

	// 載入配置
	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// 環境變數優先於配置檔，命令行參數優先於環境變數
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.Events.NATSURL = url
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
	if *natsURL != "" {
		cfg.Events.NATSURL = *natsURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// 設置日誌
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	// 遊戲事件（可選）
	var events internal.EventSink = internal.NopSink{}
	if cfg.Events.NATSURL != "" {
		sink, err := internal.NewNATSSink(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			log.Error("連接 NATS 失敗", "url", cfg.Events.NATSURL, "error", err)
			os.Exit(1)
		}
		events = sink
		log.Info("遊戲事件將發布到 NATS", "url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
	}

	// 創建協調器
	coordinator, err := internal.NewCoordinator(internal.CoordinatorOptions{
		RoomCount:      cfg.Game.RoomCount,
		StatusInterval: cfg.Game.StatusInterval,
		Events:         events,
	}, log)
	if err != nil {
		log.Error("創建協調器失敗", "error", err)
		os.Exit(1)
	}
	coordinator.Start()

	// 創建 WebSocket Hub
	wsHub := internal.NewWebSocketHub(coordinator, internal.HubConfig{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, log)

	// 創建 HTTP 處理器
	handler := internal.NewHandler(coordinator, log)

	// 設置路由
	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", wsHub.ServeWS)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		log.Info("五子棋服務器啟動",
			"addr", server.Addr,
			"rooms", cfg.Game.RoomCount,
			"log_level", cfg.Log.Level)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
