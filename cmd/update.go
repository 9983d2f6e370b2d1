package cmd

import (
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/internal/ui"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/scheduler"
	"github.com/seccerts/seccerts/seccerts/snapshot"
	"github.com/seccerts/seccerts/seccerts/store"
)

var updateCmdOpts struct {
	cc           bool
	pp           bool
	fips         bool
	cve          bool
	cpe          bool
	skipDownload bool
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "run the pipeline and publish a new snapshot",
	Long: `Refreshes the configured certification sources, downloads and converts new
artifacts, re-extracts features, rebuilds the reference graph and publishes
the result as the current snapshot. Without scheme flags all sources are
refreshed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runUpdateCmd(cmd, args))
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateCmdOpts.cc, "cc", false, "refresh the Common Criteria source")
	updateCmd.Flags().BoolVar(&updateCmdOpts.pp, "pp", false, "refresh the Protection Profile source")
	updateCmd.Flags().BoolVar(&updateCmdOpts.fips, "fips", false, "refresh the FIPS 140 sources")
	updateCmd.Flags().BoolVar(&updateCmdOpts.cve, "cve", false, "recompute related CVEs")
	updateCmd.Flags().BoolVar(&updateCmdOpts.cpe, "cpe", false, "recompute CPE matches")
	updateCmd.Flags().BoolVar(&updateCmdOpts.skipDownload, "skip-download", false,
		"reuse stored artifacts and datasets instead of hitting the network")

	rootCmd.AddCommand(updateCmd)
}

func updateOptions() snapshot.Options {
	opts := snapshot.Options{
		SkipDownload: updateCmdOpts.skipDownload,
		WithCPE:      updateCmdOpts.cpe,
		WithCVE:      updateCmdOpts.cve,
	}
	if updateCmdOpts.cc {
		opts.Schemes = append(opts.Schemes, certificate.SchemeCC)
	}
	if updateCmdOpts.pp {
		opts.Schemes = append(opts.Schemes, certificate.SchemePP)
	}
	if updateCmdOpts.fips {
		opts.Schemes = append(opts.Schemes, certificate.SchemeFIPS)
	}
	return opts
}

func runUpdateCmd(_ *cobra.Command, _ []string) int {
	if appConfig.Dev.ProfileCPU {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	// a manual update competes with scheduled runs for the same lease
	if appConfig.Scheduler.Enabled {
		locker := scheduler.NewRedisLocker(appConfig.Scheduler.RedisAddr)
		defer locker.Close()

		release, acquired, err := acquireRunLease(locker, appConfig.Scheduler.LockTTL)
		if err != nil {
			log.Errorf("unable to acquire the pipeline lock: %+v", err)
			return exitPipelineFailure
		}
		if !acquired {
			log.Error("another replica is running the pipeline, try again later")
			return exitDegraded
		}
		defer release()
	}

	p, err := buildPipeline(appConfig)
	if err != nil {
		log.Errorf("unable to set up the pipeline: %+v", err)
		return exitConfigError
	}
	defer p.Close()

	var run *store.RunRecord
	errs := make(chan error)
	go func() {
		defer close(errs)
		r, err := p.manager.Run(updateOptions())
		run = r
		if err != nil {
			errs <- err
		}
	}()

	// a signal requests a graceful stop: the run finishes its current stage
	// and is never published
	signals := setupSignals()
	loopSignals := make(chan os.Signal, 1)
	go func() {
		for s := range signals {
			p.manager.RequestStop()
			loopSignals <- s
		}
	}()

	ux := ui.NewLoggerUI(os.Stdout)
	if err := eventLoop(errs, loopSignals, eventSubscription, ux, func() {}); err != nil {
		log.Errorf("pipeline run failed: %+v", err)
		return exitPipelineFailure
	}

	switch {
	case run == nil || run.Status == store.RunStatusFailed:
		return exitPipelineFailure
	}

	if err := p.syncSearchIndex(appConfig, run.ID); err != nil {
		log.Warnf("unable to update the search index: %+v", err)
	}

	if run.Status == store.RunStatusDegraded {
		return exitDegraded
	}
	return exitOK
}
