package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	ClassifierNone      = "none"
	ClassifierHeuristic = "heuristic"
	ClassifierRemote    = "remote"
)

// classifier selects the reference-label classifier variant. The remote kind
// points at an inference service so ML dependencies stay out of this module.
type classifier struct {
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind"`
	URL  string `yaml:"url" json:"url" mapstructure:"url"`
}

func (cfg classifier) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("classifier.kind", ClassifierNone)
	v.SetDefault("classifier.url", "")
}

func (cfg *classifier) parseConfigValues() error {
	switch cfg.Kind {
	case ClassifierNone, ClassifierHeuristic:
	case ClassifierRemote:
		if cfg.URL == "" {
			return fmt.Errorf("classifier.url is required for classifier.kind=%s", ClassifierRemote)
		}
	default:
		return fmt.Errorf("bad classifier.kind value '%s' (options=[%s %s %s])", cfg.Kind, ClassifierNone, ClassifierHeuristic, ClassifierRemote)
	}
	return nil
}
