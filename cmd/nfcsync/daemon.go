package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Umer9538/nfcapp-offline/internal/dashboard"
	"github.com/Umer9538/nfcapp-offline/internal/daemon"
	"github.com/Umer9538/nfcapp-offline/internal/engine"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run the offline layer as a long-lived background process.

The daemon watches connectivity and replays the mutation queue on
reconnect, ingests spooled mutations from the spool directory, sweeps
expired cache entries, and serves a WebSocket dashboard for live
monitoring.

Example usage:
  nfcsync daemon                        # dashboard on default port 8090
  nfcsync daemon --dashboard-port 9000
  nfcsync daemon --no-dashboard

Connect with a WebSocket client:
  ws://localhost:8090/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := daemonLogger()

		a, err := openApp(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		var handler *dashboard.Handler
		var server *dashboard.Server

		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")
		if !noDashboard {
			port, _ := cmd.Flags().GetInt("dashboard-port")
			if port == 0 {
				port = viper.GetInt("dashboard.port")
			}
			server = dashboard.NewServer(&dashboard.Config{Port: port, Logger: logger})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer server.Stop()
			handler = dashboard.NewHandler(server, logger)

			// Route sync outcomes to connected dashboard clients.
			a.Engine.SetNotify(func(r engine.Result, d time.Duration) {
				handler.OnSyncComplete(r, d)
			})

			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", port)
		}

		d, err := daemon.New(a, handler, &daemon.Config{
			SpoolDir:            viper.GetString("daemon.spool_dir"),
			MaintenanceInterval: viper.GetDuration("daemon.cache_sweep_interval"),
			Logger:              logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Println("Daemon running. Press Ctrl+C to stop...")
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// daemonLogger writes to stderr, plus a rotating log file when
// log.file is configured.
func daemonLogger() *log.Logger {
	var out io.Writer = os.Stderr
	if path := viper.GetString("log.file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log.New(out, "[daemon] ", log.LstdFlags)
}

func init() {
	daemonCmd.Flags().Int("dashboard-port", 0, "dashboard WebSocket port (default from config)")
	daemonCmd.Flags().Bool("no-dashboard", false, "run without the dashboard server")

	rootCmd.AddCommand(daemonCmd)
}
