package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Umer9538/nfcapp-offline/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "nfcsync",
	Short: "Offline sync layer for the NFC medical profile app",
	Long: `nfcsync manages the offline resilience layer: a durable queue of
pending profile mutations, a TTL read cache, and a sync engine that
replays queued writes when connectivity returns.

State lives in a local SQLite database. Configuration is read from
nfcsync.yaml (current directory or ~/.nfcapp/) and NFCSYNC_* environment
variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("store", "", "path to the SQLite state database")
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "state", Title: "State Commands:"},
	)
}

// initConfig loads nfcsync.yaml and NFCSYNC_* environment variables.
func initConfig() {
	viper.SetConfigName("nfcsync")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".nfcapp"))
	}

	viper.SetEnvPrefix("NFCSYNC")
	viper.AutomaticEnv()

	viper.SetDefault("store.path", defaultStorePath())
	viper.SetDefault("queue.capacity", 100)
	viper.SetDefault("queue.max_retries", 3)
	viper.SetDefault("sync.base_url", "")
	viper.SetDefault("sync.timeout", 30*time.Second)
	viper.SetDefault("connectivity.probe_url", "")
	viper.SetDefault("connectivity.interval", 10*time.Second)
	viper.SetDefault("daemon.spool_dir", "")
	viper.SetDefault("daemon.cache_sweep_interval", 10*time.Minute)
	viper.SetDefault("dashboard.port", 8090)
	viper.SetDefault("log.file", "")

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
	}
}

// defaultStorePath places the state database under ~/.nfcapp.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nfcsync.db"
	}
	return filepath.Join(home, ".nfcapp", "nfcsync.db")
}

// appConfig builds the composition-root config from viper settings.
func appConfig(logger *log.Logger) app.Config {
	return app.Config{
		StorePath:       viper.GetString("store.path"),
		QueueCapacity:   viper.GetInt("queue.capacity"),
		QueueMaxRetries: viper.GetInt("queue.max_retries"),
		SyncBaseURL:     viper.GetString("sync.base_url"),
		SyncTimeout:     viper.GetDuration("sync.timeout"),
		ProbeURL:        viper.GetString("connectivity.probe_url"),
		ProbeInterval:   viper.GetDuration("connectivity.interval"),
		Logger:          logger,
	}
}

// openApp assembles the offline layer, creating the store directory if
// needed.
func openApp(logger *log.Logger) (*app.App, error) {
	cfg := appConfig(logger)
	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return app.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
