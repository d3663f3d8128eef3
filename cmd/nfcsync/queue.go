package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/Umer9538/nfcapp-offline/internal/queue"
	"github.com/Umer9538/nfcapp-offline/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "state",
	Short:   "Inspect and manage the mutation queue",
	Long: `Manage queued profile mutations awaiting sync.

The queue holds up to a fixed number of requests; when full, the
lowest-priority oldest entry is evicted to make room.`,
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue occupancy",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[queue] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		items, err := a.Queue.Items(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		counts := map[string]int{}
		exhausted := 0
		for _, item := range items {
			counts[item.Priority.String()]++
			if item.Exhausted() {
				exhausted++
			}
		}

		fmt.Printf("Queued:  %d\n", len(items))
		fmt.Printf("  high:   %d\n", counts["high"])
		fmt.Printf("  medium: %d\n", counts["medium"])
		fmt.Printf("  low:    %d\n", counts["low"])
		if exhausted > 0 {
			fmt.Println(ui.RenderWarn(fmt.Sprintf("  %d out of retries (dropped next pass)", exhausted)))
		}
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued mutations in sync order",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[queue] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		items, err := a.Queue.Items(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Println(ui.RenderMuted("Queue is empty"))
			return
		}
		queue.SortForSync(items)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tMETHOD\tTARGET\tRETRIES\tAGE")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
				item.ID, item.Priority, item.Method, item.Target,
				item.Retries, item.MaxRetries,
				time.Since(item.Time()).Round(time.Second))
		}
		w.Flush()
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all queued mutations",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		logger := log.New(os.Stderr, "[queue] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		size, err := a.Queue.Size(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if size == 0 {
			fmt.Println(ui.RenderMuted("Queue is already empty"))
			return
		}

		if !force && !confirm(fmt.Sprintf("Discard %d queued mutations?", size)) {
			fmt.Println("Aborted")
			return
		}

		if err := a.Queue.Clear(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Removed %d queued mutations\n", ui.RenderPass("✓"), size)
	},
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove queued mutations older than a cutoff",
	Long: `Remove queued mutations whose enqueue time predates a cutoff.

The cutoff accepts natural language:
  nfcsync queue purge --before "3 days ago"
  nfcsync queue purge --before "last monday"`,
	Run: func(cmd *cobra.Command, args []string) {
		before, _ := cmd.Flags().GetString("before")
		if before == "" {
			fmt.Fprintf(os.Stderr, "Error: --before is required\n")
			os.Exit(1)
		}

		cutoff, err := parseCutoff(before)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger := log.New(os.Stderr, "[queue] ", log.LstdFlags)
		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		purged, err := a.Queue.PurgeBefore(cmd.Context(), cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Purged %d mutations queued before %s\n",
			ui.RenderPass("✓"), purged, cutoff.Format(time.RFC3339))
	},
}

// parseCutoff resolves a natural-language or RFC 3339 cutoff time.
func parseCutoff(input string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(input, time.Now())
	if err != nil || result == nil {
		return time.Time{}, fmt.Errorf("could not parse cutoff %q", input)
	}
	return result.Time, nil
}

// confirm prompts for a yes/no decision on the terminal.
func confirm(title string) bool {
	var yes bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Discard").
		Negative("Keep").
		Value(&yes).
		Run()
	if err != nil {
		return false
	}
	return yes
}

func init() {
	queueClearCmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")
	queuePurgeCmd.Flags().String("before", "", "cutoff time (natural language or RFC 3339)")

	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queuePurgeCmd)
	rootCmd.AddCommand(queueCmd)
}
