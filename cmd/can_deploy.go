package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/scheduler"
)

var canDeployCmd = &cobra.Command{
	Use:   "can-deploy",
	Short: "report whether a deploy is safe right now",
	Long: `Probes the shared pipeline lease. While any replica holds it a pipeline run
is in flight and restarting the service would abandon a staged snapshot.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCanDeployCmd(cmd, args))
	},
}

func init() {
	rootCmd.AddCommand(canDeployCmd)
}

func runCanDeployCmd(_ *cobra.Command, _ []string) int {
	locker := scheduler.NewRedisLocker(appConfig.Scheduler.RedisAddr)
	defer locker.Close()

	ok, owner, err := scheduler.CanDeploy(locker)
	if err != nil {
		log.Errorf("unable to probe the pipeline lease: %+v", err)
		return exitPipelineFailure
	}
	if !ok {
		fmt.Printf("no: a pipeline run is in flight (held by %s)\n", owner)
		return exitDegraded
	}
	fmt.Println("yes: no pipeline run in flight")
	return exitOK
}
