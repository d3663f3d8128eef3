package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Umer9538/nfcapp-offline/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Replay queued mutations against the server",
	Long: `Run one sync pass over the mutation queue.

Queued requests are replayed in priority order (high first, oldest
first within a priority). Failures are retried on later passes until
the request's retry budget is exhausted. If the device is offline the
pass is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		ctx := cmd.Context()
		a.Monitor.Start(ctx)
		defer a.Monitor.Stop()

		if !a.Monitor.IsOnline() {
			fmt.Println(ui.RenderWarn("Offline; nothing synced"))
			return
		}

		start := time.Now()
		result, err := a.Engine.SyncQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		total := result.Success + result.Failed + result.Skipped
		if total == 0 {
			fmt.Println(ui.RenderMuted("Queue is empty"))
			return
		}

		fmt.Printf("%s %d synced, %d failed, %d skipped (%s)\n",
			ui.RenderPass("Sync complete:"),
			result.Success, result.Failed, result.Skipped,
			time.Since(start).Round(time.Millisecond))

		for _, e := range result.Errors {
			fmt.Printf("  %s %s: %s\n", ui.RenderFail("✗"), e.RequestID, e.Error)
		}
		if result.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
