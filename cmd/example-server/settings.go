package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"sliding-gateway/internal/config"
)

// settings do servidor de exemplo; só ambiente (LISTEN_ADDR, LOG_LEVEL,
// LOG_FORMAT, STATS_TRACK_CLIENTS).
type settings struct {
	ListenAddr string           `mapstructure:"listen_addr"`
	Log        config.LogConfig `mapstructure:"log"`
	Stats      statsSettings    `mapstructure:"stats"`
}

type statsSettings struct {
	TrackClients bool `mapstructure:"track_clients"`
}

func loadSettings() (settings, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("stats.track_clients", false)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return s, nil
}
