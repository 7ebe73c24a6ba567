package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// RTC holds the fixed media-engine surface: codec clock rates live in the
// engine adapter, everything network-shaped lives here.
type RTC struct {
	WorkerBin              string `mapstructure:"worker_bin"`
	ListenIP               string `mapstructure:"listen_ip"`
	AnnouncedAddress       string `mapstructure:"announced_address"`
	MinPort                uint16 `mapstructure:"min_port"`
	MaxPort                uint16 `mapstructure:"max_port"`
	MaxIncomingBitrate     uint32 `mapstructure:"max_incoming_bitrate"`
	InitialOutgoingBitrate uint32 `mapstructure:"initial_outgoing_bitrate"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	RTC        RTC           `mapstructure:"rtc"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("rtc.worker_bin", "mediasoup-worker")
	v.SetDefault("rtc.listen_ip", "127.0.0.1")
	// No announced address by default: deployments behind NAT must set one.
	v.SetDefault("rtc.announced_address", "")
	v.SetDefault("rtc.min_port", 10000)
	v.SetDefault("rtc.max_port", 10100)
	v.SetDefault("rtc.max_incoming_bitrate", 1500000)
	v.SetDefault("rtc.initial_outgoing_bitrate", 1000000)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
