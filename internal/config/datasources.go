package config

import (
	"time"

	"github.com/spf13/viper"
)

// datasources holds the URL pointers for the external dataset snapshots that seed each pipeline run.
type datasources struct {
	CCDatasetURL      string        `yaml:"cc-dataset-url" json:"cc-dataset-url" mapstructure:"cc-dataset-url"`
	PPDatasetURL      string        `yaml:"pp-dataset-url" json:"pp-dataset-url" mapstructure:"pp-dataset-url"`
	FIPSDatasetURL    string        `yaml:"fips-dataset-url" json:"fips-dataset-url" mapstructure:"fips-dataset-url"`
	FIPSIUTDatasetURL string        `yaml:"fips-iut-dataset-url" json:"fips-iut-dataset-url" mapstructure:"fips-iut-dataset-url"`
	FIPSMIPDatasetURL string        `yaml:"fips-mip-dataset-url" json:"fips-mip-dataset-url" mapstructure:"fips-mip-dataset-url"`
	CPEDictionaryURL  string        `yaml:"cpe-dictionary-url" json:"cpe-dictionary-url" mapstructure:"cpe-dictionary-url"`
	CVEFeedURL        string        `yaml:"cve-feed-url" json:"cve-feed-url" mapstructure:"cve-feed-url"`
	CPEMatchFeedURL   string        `yaml:"cpe-match-feed-url" json:"cpe-match-feed-url" mapstructure:"cpe-match-feed-url"`
	NVDAPIURL         string        `yaml:"nvd-api-url" json:"nvd-api-url" mapstructure:"nvd-api-url"` // live API, used when the mirror is unreachable
	FetchTimeout      time.Duration `yaml:"fetch-timeout" json:"fetch-timeout" mapstructure:"fetch-timeout"`
	RetryAttempts     int           `yaml:"retry-attempts" json:"retry-attempts" mapstructure:"retry-attempts"`
}

func (cfg datasources) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("sources.cc-dataset-url", "https://sec-certs.org/cc.json.gz")
	v.SetDefault("sources.pp-dataset-url", "https://sec-certs.org/pp.json.gz")
	v.SetDefault("sources.fips-dataset-url", "https://sec-certs.org/fips.json.gz")
	v.SetDefault("sources.fips-iut-dataset-url", "https://sec-certs.org/fips_iut.json.gz")
	v.SetDefault("sources.fips-mip-dataset-url", "https://sec-certs.org/fips_mip.json.gz")
	v.SetDefault("sources.cpe-dictionary-url", "https://sec-certs.org/cpe.json.gz")
	v.SetDefault("sources.cve-feed-url", "https://sec-certs.org/cve.json.gz")
	v.SetDefault("sources.cpe-match-feed-url", "https://sec-certs.org/cpe_match.json.gz")
	v.SetDefault("sources.nvd-api-url", "https://services.nvd.nist.gov/rest/json")
	v.SetDefault("sources.fetch-timeout", 5*time.Minute)
	v.SetDefault("sources.retry-attempts", 3)
}
