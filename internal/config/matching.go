package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type matching struct {
	CPEMatchingThreshold int `yaml:"cpe-matching-threshold" json:"cpe-matching-threshold" mapstructure:"cpe-matching-threshold"`
	CPENMaxMatches       int `yaml:"cpe-n-max-matches" json:"cpe-n-max-matches" mapstructure:"cpe-n-max-matches"`
}

func (cfg matching) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("matching.cpe-matching-threshold", 92)
	v.SetDefault("matching.cpe-n-max-matches", 99)
}

func (cfg *matching) parseConfigValues() error {
	if cfg.CPEMatchingThreshold < 0 || cfg.CPEMatchingThreshold > 100 {
		return fmt.Errorf("matching.cpe-matching-threshold must be within [0, 100] (given: %d)", cfg.CPEMatchingThreshold)
	}
	if cfg.CPENMaxMatches < 1 {
		return fmt.Errorf("matching.cpe-n-max-matches must be positive (given: %d)", cfg.CPENMaxMatches)
	}
	return nil
}
