package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Umer9538/nfcapp-offline/internal/cache"
	"github.com/Umer9538/nfcapp-offline/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	GroupID: "state",
	Short:   "Inspect and manage the read cache",
	Long: `Manage cached server reads.

Each domain (profile, bracelet-status, dashboard-stats, ...) is cached
under its own key with a domain-specific TTL. Expired entries are
evicted on read and by the daemon's maintenance sweep.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy and per-domain freshness",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[cache] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		ctx := cmd.Context()
		stats, err := a.Cache.GetStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Entries: %d (%d valid, %d expired)\n",
			stats.TotalEntries, stats.ValidEntries, stats.ExpiredEntries)

		domains, err := a.Cache.Keys(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(domains) == 0 {
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tAGE\tTTL\tSTATE")
		for _, domain := range domains {
			age, ok := a.Cache.Age(ctx, domain)
			if !ok {
				continue
			}
			state := ui.RenderPass("fresh")
			if a.Cache.IsExpired(ctx, domain) {
				state = ui.RenderWarn("expired")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				domain, age.Round(time.Second), cache.DefaultTTL(domain), state)
		}
		w.Flush()
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict expired cache entries",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[cache] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		evicted, err := a.Cache.CleanupExpired(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Evicted %d expired entries\n", ui.RenderPass("✓"), evicted)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [domain]",
	Short: "Drop one cached domain, or the entire cache",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		logger := log.New(os.Stderr, "[cache] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		ctx := cmd.Context()

		if len(args) == 1 {
			if err := a.Cache.Clear(ctx, args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Cleared %s\n", ui.RenderPass("✓"), args[0])
			return
		}

		if !force && !confirm("Drop the entire read cache?") {
			fmt.Println("Aborted")
			return
		}

		if err := a.Cache.ClearAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Cache cleared\n", ui.RenderPass("✓"))
	},
}

func init() {
	cacheClearCmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
