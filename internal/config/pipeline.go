package config

import (
	"fmt"
	"path"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/seccerts/seccerts/internal"
	"github.com/seccerts/seccerts/seccerts/refgraph"
)

type pipeline struct {
	NThreads           int             `yaml:"n-threads" json:"n-threads" mapstructure:"n-threads"` // -1 means all logical cores
	ArtifactDir        string          `yaml:"artifact-dir" json:"artifact-dir" mapstructure:"artifact-dir"`
	IgnoreFirstPage    bool            `yaml:"ignore-first-page" json:"ignore-first-page" mapstructure:"ignore-first-page"`
	MinimalTokenLength int             `yaml:"minimal-token-length" json:"minimal-token-length" mapstructure:"minimal-token-length"`
	ArchivalRuns       int             `yaml:"archival-runs" json:"archival-runs" mapstructure:"archival-runs"` // consecutive absences before a certificate is archived
	CCGraph            string          `yaml:"cc-graph" json:"cc-graph" mapstructure:"cc-graph"`
	CCGraphOpt         refgraph.Policy `yaml:"-" json:"-"`
}

func (cfg pipeline) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("pipeline.n-threads", -1)
	v.SetDefault("pipeline.artifact-dir", path.Join(xdg.CacheHome, internal.ApplicationName, "artifacts"))
	v.SetDefault("pipeline.ignore-first-page", false)
	v.SetDefault("pipeline.minimal-token-length", 3)
	v.SetDefault("pipeline.archival-runs", 3)
	v.SetDefault("pipeline.cc-graph", refgraph.PolicyBoth.String())
}

func (cfg *pipeline) parseConfigValues() error {
	policy := refgraph.ParsePolicy(cfg.CCGraph)
	if policy == refgraph.PolicyUnknown {
		return fmt.Errorf("bad pipeline.cc-graph value '%s' (options=%v)", cfg.CCGraph, refgraph.PolicyOptions)
	}
	cfg.CCGraphOpt = policy

	if cfg.ArchivalRuns < 1 {
		return fmt.Errorf("pipeline.archival-runs must be positive (given: %d)", cfg.ArchivalRuns)
	}
	return nil
}
