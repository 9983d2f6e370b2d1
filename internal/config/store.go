package config

import (
	"path"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/seccerts/seccerts/internal"
)

type store struct {
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
}

func (cfg store) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("store.dir", path.Join(xdg.CacheHome, internal.ApplicationName, "store"))
}
