package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seccerts/seccerts/internal"
	"github.com/seccerts/seccerts/internal/config"
)

var persistentOpts = config.CliOnlyOptions{}

var rootCmd = &cobra.Command{
	Use:   internal.ApplicationName,
	Short: "A pipeline for security certification data",
	Long: fmt.Sprintf(`%s collects Common Criteria, Protection Profile and FIPS 140 certification
data, extracts features from the certification documents, links certificates
to each other and to NVD records, and publishes the result as versioned
snapshots.`, internal.ApplicationName),
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&persistentOpts.ConfigPath, "config", "c", "",
		"application config file")

	rootCmd.PersistentFlags().CountVarP(&persistentOpts.Verbosity, "verbose", "v",
		"increase verbosity (-v = info, -vv = debug)")

	flag := "quiet"
	rootCmd.PersistentFlags().BoolP(
		flag, "q", false,
		"suppress all output (except for the final result)",
	)
	if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Printf("unable to bind flag '%s': %+v", flag, err)
		os.Exit(1)
	}
}
