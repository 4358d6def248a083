package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var similarCmd = &cobra.Command{
	Use:   "similar <title or id>",
	Short: "Find series similar to a given one",
	Long: `Find series similar to a given one, matched by its primary genre.

Examples:
  seriesbot similar "Breaking Bad"
  seriesbot similar 81189`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cat, err := getCatalog()
	if err != nil {
		return err
	}

	id, err := resolveSeriesArg(ctx, cat, args[0])
	if err != nil {
		return err
	}

	results, err := cat.Similar(ctx, id)
	if err != nil {
		return fmt.Errorf("find similar: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No similar series found.")
		return nil
	}

	fmt.Printf("Similar series:\n\n")
	for i, s := range results {
		fmt.Printf("%d. %s", i+1, s.Name)
		if s.Year != "" {
			fmt.Printf(" (%s)", s.Year)
		}
		fmt.Println()
		if verbose && s.Overview != "" {
			fmt.Printf("   %s\n", s.Overview)
		}
	}
	return nil
}
