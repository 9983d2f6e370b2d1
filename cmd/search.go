package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/search"
)

var searchCmdOpts struct {
	scheme   string
	status   string
	category string
	eal      string
	sort     string
	page     int
	facets   bool
}

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "query the search index",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runSearchCmd(cmd, args))
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCmdOpts.scheme, "scheme", "", "filter by scheme (cc, pp, fips)")
	searchCmd.Flags().StringVar(&searchCmdOpts.status, "status", "", "filter by status (active, archived)")
	searchCmd.Flags().StringVar(&searchCmdOpts.category, "category", "", "filter by category")
	searchCmd.Flags().StringVar(&searchCmdOpts.eal, "eal", "", "filter by claimed EAL, e.g. EAL4+")
	searchCmd.Flags().StringVar(&searchCmdOpts.sort, "sort", "", "sort order (relevance, date, name)")
	searchCmd.Flags().IntVar(&searchCmdOpts.page, "page", 0, "result page, 1-based")
	searchCmd.Flags().BoolVar(&searchCmdOpts.facets, "facets", false, "show facet counts")

	rootCmd.AddCommand(searchCmd)
}

func runSearchCmd(_ *cobra.Command, args []string) int {
	idx, err := search.Open(appConfig.Search.IndexDir, appConfig.Search.ItemsPerPage)
	if err != nil {
		log.Errorf("unable to open the search index: %+v", err)
		return exitConfigError
	}
	defer idx.Close()

	query := search.Query{
		Scheme:   searchCmdOpts.scheme,
		Status:   searchCmdOpts.status,
		Category: searchCmdOpts.category,
		EAL:      searchCmdOpts.eal,
		Sort:     searchCmdOpts.sort,
		Page:     searchCmdOpts.page,
	}
	if len(args) > 0 {
		query.Text = args[0]
	}

	result, err := idx.Search(query)
	if err != nil {
		var badQuery *search.ErrBadQuery
		if errors.As(err, &badQuery) {
			log.Errorf("%v", err)
			return exitConfigError
		}
		log.Errorf("search failed: %+v", err)
		return exitPipelineFailure
	}

	for _, hit := range result.Hits {
		fmt.Printf("%-16s  %-4s  %-24s  %s\n", hit.Digest, hit.Scheme, hit.SchemeID, hit.Name)
	}
	fmt.Printf("page %d/%d (%d results)\n", result.Page, result.Pages, result.Total)

	if searchCmdOpts.facets {
		for field, counts := range result.Facets {
			fmt.Printf("%s:\n", field)
			for _, count := range counts {
				fmt.Printf("  %-24s %d\n", count.Value, count.Count)
			}
		}
	}
	return exitOK
}
