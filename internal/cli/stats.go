package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime statistics of a running server",
	Long: `Show in-memory runtime statistics of a running seriesbot server:
active sessions, turn counts and per-operation latencies. Statistics
reset on server restart.

Examples:
  seriesbot stats
  seriesbot stats --server http://localhost:8487`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := getClient().Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	fmt.Printf("Uptime:   %s\n", (time.Duration(snap.UptimeSeconds) * time.Second).String())
	fmt.Printf("Sessions: %d\n", snap.Sessions)

	if len(snap.Operations) == 0 {
		fmt.Println("\nNo operations recorded yet.")
		return nil
	}

	names := make([]string, 0, len(snap.Operations))
	for name := range snap.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nOperations:")
	for _, name := range names {
		op := snap.Operations[name]
		fmt.Printf("  %-16s count=%-6d errors=%-4d avg=%.1fms min=%dms max=%dms\n",
			name, op.Count, op.Errors, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
	return nil
}
