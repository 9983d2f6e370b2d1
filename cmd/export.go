package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

var exportCmdOpts struct {
	scheme   string
	snapshot string
	output   string
}

var exportCmd = &cobra.Command{
	Use:   "export COLLECTION",
	Short: "write a collection as canonical JSON",
	Long: `Dumps one collection (certificates, diffs or runs) from the published
snapshot as canonical JSON: sorted keys, two-space indent, trailing newline.
Exporting the same snapshot twice yields byte-identical output.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"certificates", "diffs", "runs"},
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runExportCmd(cmd, args))
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCmdOpts.scheme, "scheme", "", "limit the export to one scheme (cc, pp, fips)")
	exportCmd.Flags().StringVar(&exportCmdOpts.snapshot, "snapshot", "", "snapshot (or run) id to export, defaults to the published snapshot")
	exportCmd.Flags().StringVarP(&exportCmdOpts.output, "output", "o", "", "write to the given file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

func runExportCmd(_ *cobra.Command, args []string) int {
	scheme := certificate.Scheme("")
	if exportCmdOpts.scheme != "" {
		scheme = certificate.ParseScheme(exportCmdOpts.scheme)
		if scheme == "" {
			log.Errorf("bad scheme value %q (options=%v)", exportCmdOpts.scheme, certificate.AllSchemes)
			return exitConfigError
		}
	}

	db, err := openStore(appConfig)
	if err != nil {
		log.Errorf("unable to open store: %+v", err)
		return exitConfigError
	}
	defer db.Close()

	id := exportCmdOpts.snapshot
	if id == "" {
		current, ok, err := db.CurrentSnapshotID()
		if err != nil {
			log.Errorf("unable to determine the published snapshot: %+v", err)
			return exitPipelineFailure
		}
		if !ok && args[0] != "runs" {
			log.Error("no snapshot has been published yet")
			return exitPipelineFailure
		}
		id = current
	}

	var out io.Writer = os.Stdout
	if exportCmdOpts.output != "" {
		f, err := os.Create(exportCmdOpts.output)
		if err != nil {
			log.Errorf("unable to create output file: %+v", err)
			return exitConfigError
		}
		defer f.Close()
		out = f
	}

	if err := db.Export(out, args[0], id, scheme); err != nil {
		log.Errorf("export failed: %+v", err)
		return exitPipelineFailure
	}
	return exitOK
}
