package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/ppid"
)

const generatedIDsFileName = "pp_generated_ids.json"

var forceIDGenerationCmdOpts struct {
	all bool
}

var forceIDGenerationCmd = &cobra.Command{
	Use:   "force-id-generation",
	Short: "assign stable ids to protection profiles",
	Long: `Walks the protection profiles of the published snapshot and assigns an id
to every profile that does not have one yet. Existing assignments are kept
unless --all is given.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runForceIDGenerationCmd(cmd, args))
	},
}

func init() {
	forceIDGenerationCmd.Flags().BoolVar(&forceIDGenerationCmdOpts.all, "all", false,
		"discard existing assignments and regenerate every id")

	rootCmd.AddCommand(forceIDGenerationCmd)
}

func runForceIDGenerationCmd(_ *cobra.Command, _ []string) int {
	db, err := openStore(appConfig)
	if err != nil {
		log.Errorf("unable to open store: %+v", err)
		return exitConfigError
	}
	defer db.Close()

	current, ok, err := db.CurrentSnapshotID()
	if err != nil {
		log.Errorf("unable to determine the published snapshot: %+v", err)
		return exitPipelineFailure
	}
	if !ok {
		log.Error("no snapshot has been published yet")
		return exitPipelineFailure
	}

	profiles, err := db.Certificates(current, certificate.SchemePP)
	if err != nil {
		log.Errorf("unable to load protection profiles: %+v", err)
		return exitPipelineFailure
	}

	generator, err := ppid.NewGenerator(afero.NewOsFs(), filepath.Join(appConfig.Store.Dir, generatedIDsFileName))
	if err != nil {
		log.Errorf("unable to load id assignments: %+v", err)
		return exitPipelineFailure
	}
	if forceIDGenerationCmdOpts.all {
		generator.Reset()
	}

	var generated, skipped int
	for _, profile := range profiles {
		if profile.CertificationDate == nil {
			log.Warnf("skipping %s: no certification date", profile.SchemeID)
			skipped++
			continue
		}
		_, fresh, err := generator.Ensure(profile.SchemeID, profile.Category, *profile.CertificationDate, profile.Name)
		if err != nil {
			log.Warnf("skipping %s: %v", profile.SchemeID, err)
			skipped++
			continue
		}
		if fresh {
			generated++
		}
	}

	if err := generator.Save(); err != nil {
		log.Errorf("unable to persist id assignments: %+v", err)
		return exitPipelineFailure
	}

	fmt.Printf("generated %d new ids (%d profiles skipped, %d total assignments)\n",
		generated, skipped, len(generator.IDs()))
	return exitOK
}
