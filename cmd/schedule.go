package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/scheduler"
	"github.com/seccerts/seccerts/seccerts/snapshot"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "run the pipeline periodically",
	Long: `Runs pipeline updates on the configured interval until interrupted. Runs
are serialized across replicas through a redis lease, so several instances
of this command may run side by side.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runScheduleCmd(cmd, args))
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleCmd(_ *cobra.Command, _ []string) int {
	if !appConfig.Scheduler.Enabled {
		log.Error("the scheduler is disabled in the application config")
		return exitConfigError
	}

	p, err := buildPipeline(appConfig)
	if err != nil {
		log.Errorf("unable to set up the pipeline: %+v", err)
		return exitConfigError
	}
	defer p.Close()

	locker := scheduler.NewRedisLocker(appConfig.Scheduler.RedisAddr)
	defer locker.Close()

	sched := scheduler.New(scheduler.Config{
		Locker:   locker,
		Runner:   p.manager,
		Interval: appConfig.Scheduler.Interval,
		LockTTL:  appConfig.Scheduler.LockTTL,
		// scheduled runs always refresh everything
		Options: snapshot.Options{WithCPE: true, WithCVE: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	signals := setupSignals()
	go func() {
		<-signals
		p.manager.RequestStop()
		cancel()
	}()

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("scheduler stopped: %+v", err)
		return exitPipelineFailure
	}
	return exitOK
}
