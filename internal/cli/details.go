package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"
)

var detailsCmd = &cobra.Command{
	Use:   "details <title or id>",
	Short: "Show extended details for one series",
	Long: `Show extended details for one series.

Accepts a title, a numeric series id, or a "series-12345" id as printed
by the search command. Titles are resolved by search: an exact
case-insensitive match wins, otherwise the top result is used.

Examples:
  seriesbot details "Breaking Bad"
  seriesbot details 81189
  seriesbot details series-81189`,
	Args: cobra.ExactArgs(1),
	RunE: runDetails,
}

func runDetails(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cat, err := getCatalog()
	if err != nil {
		return err
	}

	id, err := resolveSeriesArg(ctx, cat, args[0])
	if err != nil {
		return err
	}

	detail, err := cat.Series(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch series %d: %w", id, err)
	}

	printDetail(detail)
	return nil
}

// resolveSeriesArg turns a CLI argument into a numeric series id,
// searching by title when it is not an id.
func resolveSeriesArg(ctx context.Context, cat *tvdb.Client, arg string) (int, error) {
	if id, err := models.ParseSeriesID(arg); err == nil {
		return id, nil
	}

	results, err := cat.Search(ctx, arg, tvdb.SearchOptions{Limit: 5})
	if err != nil {
		return 0, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("no series found for %q", arg)
	}

	best := results[0]
	for _, r := range results {
		if strings.EqualFold(r.Name, arg) {
			best = r
			break
		}
	}
	return best.NumericID()
}

func printDetail(d models.SeriesDetail) {
	fmt.Printf("%s", d.Name)
	if len(d.FirstAired) >= 4 {
		fmt.Printf(" (%s)", d.FirstAired[:4])
	}
	fmt.Printf("  [series-%d]\n\n", d.ID)

	if d.Status != "" {
		fmt.Printf("Status:      %s\n", d.Status)
	}
	if d.Network.Name != "" {
		fmt.Printf("Network:     %s\n", d.Network.Name)
	}
	if genres := d.GenreNames(); len(genres) > 0 {
		fmt.Printf("Genres:      %s\n", strings.Join(genres, ", "))
	}
	if d.FirstAired != "" {
		fmt.Printf("First aired: %s\n", d.FirstAired)
	}
	if d.LastAired != "" {
		fmt.Printf("Last aired:  %s\n", d.LastAired)
	}
	if d.Overview != "" {
		fmt.Printf("\n%s\n", d.Overview)
	}
}
