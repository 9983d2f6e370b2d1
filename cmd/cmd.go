package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wagoodman/go-partybus"

	"github.com/seccerts/seccerts/internal/bus"
	"github.com/seccerts/seccerts/internal/config"
	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/internal/logger"
	"github.com/seccerts/seccerts/internal/version"
)

// exit codes shared by all commands
const (
	exitOK              = 0
	exitDegraded        = 2 // the run finished but at least one source was degraded
	exitConfigError     = 64
	exitPipelineFailure = 70
)

var (
	appConfig         *config.Application
	eventBus          *partybus.Bus
	eventSubscription *partybus.Subscription
)

func init() {
	cobra.OnInitialize(
		initAppConfig,
		initLogging,
		logAppConfig,
		logAppVersion,
		initEventBus,
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_ = stderrPrintLnf(err.Error())
		os.Exit(1)
	}
}

func initAppConfig() {
	cfg, err := config.LoadApplicationConfig(viper.GetViper(), persistentOpts)
	if err != nil {
		fmt.Printf("failed to load application config: \n\t%+v\n", err)
		os.Exit(exitConfigError)
	}
	appConfig = cfg
}

func initLogging() {
	enableConsole := (appConfig.Log.FileLocation == "" || appConfig.CliOptions.Verbosity > 0) && !appConfig.Quiet
	cfg := logger.LogrusConfig{
		EnableConsole: enableConsole,
		EnableFile:    appConfig.Log.FileLocation != "",
		Level:         appConfig.Log.LevelOpt,
		Structured:    appConfig.Log.Structured,
		FileLocation:  appConfig.Log.FileLocation,
	}

	log.Set(logger.NewLogrusLogger(cfg))
}

func logAppConfig() {
	log.Debugf("application config:\n%+v", appConfig.String())
}

func logAppVersion() {
	versionInfo := version.FromBuild()
	log.Infof("%s version: %s", rootCmd.Use, versionInfo.Version)
}

func initEventBus() {
	eventBus = partybus.NewBus()
	eventSubscription = eventBus.Subscribe()

	bus.SetPublisher(eventBus)
}
