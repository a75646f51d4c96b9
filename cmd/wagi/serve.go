package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/wagi/config"
	"github.com/caffeineduck/wagi/gateway"
	"github.com/caffeineduck/wagi/logging"
	"github.com/caffeineduck/wagi/metrics"
	"github.com/caffeineduck/wagi/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the HTTP gateway and serve every module in the deployment file.

Settings come from WAGI_* environment variables; explicit flags win.

Endpoints:
  GET /healthz   Health check
  GET /metrics   Prometheus metrics
  *              Module routes from the deployment file`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", ":3000", "Listen address")
	serveCmd.Flags().StringP("modules", "m", "modules.toml", "Deployment file")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "Per-request execution timeout")
	serveCmd.Flags().Bool("cors", false, "Enable CORS on module routes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       settings.LogLevel,
		Development: settings.LogDev,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	modules, err := config.LoadModules(settings.ModulesFile)
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := []gateway.Option{gateway.WithLogger(logger), gateway.WithMetrics(m)}
	if dir := cacheDir(settings); dir != "" {
		opts = append(opts, gateway.WithCacheDir(dir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(ctx, modules, opts...)
	if err != nil {
		return err
	}
	defer gw.Close()

	return server.New(settings, gw, logger, m).Serve(ctx)
}

// loadSettings reads WAGI_* variables, then lets changed flags override.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		settings.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("modules") {
		settings.ModulesFile, _ = flags.GetString("modules")
	}
	if flags.Changed("timeout") {
		settings.ExecTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("cors") {
		settings.EnableCORS, _ = flags.GetBool("cors")
	}

	persistent := cmd.Root().PersistentFlags()
	if persistent.Changed("log-level") {
		settings.LogLevel, _ = persistent.GetString("log-level")
	}
	if persistent.Changed("log-dev") {
		settings.LogDev, _ = persistent.GetBool("log-dev")
	}
	if persistent.Changed("cache-dir") {
		settings.CacheDir, _ = persistent.GetString("cache-dir")
	}
	if persistent.Changed("no-cache") {
		settings.NoCache, _ = persistent.GetBool("no-cache")
	}
	return settings, nil
}

// cacheDir resolves where compiled modules persist; "" disables the
// disk cache and compilation stays in memory for the process lifetime.
func cacheDir(settings *config.Settings) string {
	if settings.NoCache {
		return ""
	}
	if settings.CacheDir != "" {
		return settings.CacheDir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "wagi")
}
