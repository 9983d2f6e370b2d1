package config

import (
	"time"

	"github.com/spf13/viper"
)

type scheduler struct {
	Enabled   bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Interval  time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`
	RedisAddr string        `yaml:"redis-addr" json:"redis-addr" mapstructure:"redis-addr"`
	LockTTL   time.Duration `yaml:"lock-ttl" json:"lock-ttl" mapstructure:"lock-ttl"`
}

func (cfg scheduler) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 24*time.Hour)
	v.SetDefault("scheduler.redis-addr", "localhost:6379")
	v.SetDefault("scheduler.lock-ttl", 4*time.Hour)
}
