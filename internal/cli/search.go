package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"
)

var (
	searchYear    string
	searchNetwork string
	searchCountry string
	searchStatus  string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search the series catalog by title",
	Long: `Search the series catalog by title without going through the chatbot.

Returns matching series ranked by the catalog. Filters are applied on
top of the title match.

Examples:
  seriesbot search "Breaking Bad"
  seriesbot search "Dark" --year 2017
  seriesbot search "The Office" --country usa
  seriesbot search "crime" --network HBO --limit 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchYear, "year", "", "filter by first-aired year")
	searchCmd.Flags().StringVar(&searchNetwork, "network", "", "filter by network")
	searchCmd.Flags().StringVar(&searchCountry, "country", "", "filter by country")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "filter by status (Continuing, Ended, ...)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	cat, err := getCatalog()
	if err != nil {
		return err
	}

	results, err := cat.Search(ctx, query, tvdb.SearchOptions{
		Year:    searchYear,
		Network: searchNetwork,
		Country: searchCountry,
		Status:  searchStatus,
		Limit:   searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, s := range results {
		fmt.Printf("%d. %s", i+1, s.Name)
		if s.Year != "" {
			fmt.Printf(" (%s)", s.Year)
		}
		fmt.Printf("  [%s]\n", s.ID)
		if s.Network != "" || s.Status != "" {
			fmt.Printf("   %s %s\n", s.Network, s.Status)
		}
		if verbose && s.Overview != "" {
			fmt.Printf("   %s\n", s.Overview)
		}
		fmt.Println()
	}
	return nil
}
