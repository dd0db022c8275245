package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Session SessionConfig `mapstructure:"session"`
	WS      WSConfig      `mapstructure:"ws"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig 存储配置，Driver 为 memory 或 sqlite
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SessionConfig struct {
	DefaultCapacity int `mapstructure:"default_capacity"`
}

type WSConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Load 读取配置文件（可选），再用 WEREWOLF_* 环境变量覆盖
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "werewolf.db")
	v.SetDefault("session.default_capacity", 12)
	v.SetDefault("ws.write_timeout", 10*time.Second)
	v.SetDefault("ws.ping_interval", 30*time.Second)

	v.SetEnvPrefix("WEREWOLF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("未知的存储驱动 %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		return fmt.Errorf("sqlite 需要配置 store.dsn")
	}
	if c.Session.DefaultCapacity < 4 || c.Session.DefaultCapacity > 20 {
		return fmt.Errorf("session.default_capacity 必须在 4 到 20 之间，当前为 %d", c.Session.DefaultCapacity)
	}
	if c.WS.WriteTimeout <= 0 {
		return fmt.Errorf("ws.write_timeout 必须大于 0")
	}
	return nil
}
