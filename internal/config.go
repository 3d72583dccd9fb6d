package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Game struct {
		RoomCount      int           `yaml:"room_count"`
		StatusInterval time.Duration `yaml:"status_interval"`
	} `yaml:"game"`

	WebSocket struct {
		SendBuffer     int           `yaml:"send_buffer"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongWait       time.Duration `yaml:"pong_wait"`
		WriteWait      time.Duration `yaml:"write_wait"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"websocket"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Events struct {
		NATSURL       string `yaml:"nats_url"`        // 空字串表示不發布事件
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"events"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second

	cfg.Game.RoomCount = DefaultRoomCount
	cfg.Game.StatusInterval = DefaultStatusInterval

	// 54s Ping / 60s Pong 超時
	cfg.WebSocket.SendBuffer = 256
	cfg.WebSocket.PingInterval = 54 * time.Second
	cfg.WebSocket.PongWait = 60 * time.Second
	cfg.WebSocket.WriteWait = 10 * time.Second
	cfg.WebSocket.MaxMessageSize = maxMessageBytes

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Events.SubjectPrefix = "gobang.events"

	return cfg
}

// LoadConfig 載入配置
//
// 以預設值為基礎，YAML 檔案中出現的欄位覆蓋預設值。
// path 為空或檔案不存在時直接使用預設值。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	// #nosec G304 - path 來自命令行參數
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置檔失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("無效的端口: %d", c.Server.Port)
	}
	if c.Game.RoomCount <= 0 {
		return fmt.Errorf("房間數量必須大於 0: %d", c.Game.RoomCount)
	}
	if c.Game.StatusInterval <= 0 {
		return fmt.Errorf("狀態廣播間隔必須大於 0: %s", c.Game.StatusInterval)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("發送緩衝必須大於 0: %d", c.WebSocket.SendBuffer)
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("ping_interval (%s) 必須小於 pong_wait (%s)", c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("消息大小上限必須大於 0: %d", c.WebSocket.MaxMessageSize)
	}
	return nil
}

// Addr 服務監聽地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
