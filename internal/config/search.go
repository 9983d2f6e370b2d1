package config

import (
	"fmt"
	"path"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/seccerts/seccerts/internal"
)

type search struct {
	ItemsPerPage int    `yaml:"items-per-page" json:"items-per-page" mapstructure:"items-per-page"`
	IndexDir     string `yaml:"index-dir" json:"index-dir" mapstructure:"index-dir"`
}

func (cfg search) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("search.items-per-page", 20)
	v.SetDefault("search.index-dir", path.Join(xdg.CacheHome, internal.ApplicationName, "index"))
}

func (cfg *search) parseConfigValues() error {
	if cfg.ItemsPerPage < 1 {
		return fmt.Errorf("search.items-per-page must be positive (given: %d)", cfg.ItemsPerPage)
	}
	return nil
}
