package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "summarize the published snapshot and recent runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runStatusCmd(cmd, args))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(_ *cobra.Command, _ []string) int {
	db, err := openStore(appConfig)
	if err != nil {
		log.Errorf("unable to open store: %+v", err)
		return exitConfigError
	}
	defer db.Close()

	current, ok, err := db.CurrentSnapshotID()
	if err != nil {
		log.Errorf("unable to read the snapshot pointer: %+v", err)
		return exitPipelineFailure
	}
	if !ok {
		fmt.Println("no snapshot published yet")
		return exitOK
	}

	certs, err := db.Certificates(current, "")
	if err != nil {
		log.Errorf("unable to load the published snapshot: %+v", err)
		return exitPipelineFailure
	}
	counts := make(map[certificate.Scheme]int)
	for _, cert := range certs {
		counts[cert.Scheme]++
	}

	fmt.Printf("published snapshot: %s\n", current)
	fmt.Printf("certificates:       %d\n", len(certs))
	for _, scheme := range certificate.AllSchemes {
		if counts[scheme] > 0 {
			fmt.Printf("  %-6s %d\n", scheme, counts[scheme])
		}
	}

	runs, err := db.Runs(5)
	if err != nil {
		log.Errorf("unable to load run log: %+v", err)
		return exitPipelineFailure
	}
	if len(runs) > 0 {
		fmt.Println("recent runs:")
		for _, run := range runs {
			fmt.Printf("  %s  %s  status=%s created=%d updated=%d archived=%d\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.ID, run.Status, run.Created, run.Updated, run.Archived)
		}
	}
	return exitOK
}
