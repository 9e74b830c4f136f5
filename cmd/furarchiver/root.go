package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"furarchiver/pkg/archiver"
	"furarchiver/pkg/config"
	"furarchiver/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile   string
	logLevel     string
	databasePath string
	outputDir    string
	cookie       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "furarchiver",
	Short: "Archive creator galleries, scraps and favorites with full metadata",
	Long: `furarchiver walks a creator's gallery, scraps and favorites pages,
records every submission in a local database, harvests titles, tags,
descriptions and comments, downloads the original files and thumbnails,
and keeps the on-disk archive organized per account.

Every stage is resumable: interrupt the program at any point and the next
run continues from what the database already knows.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./furarchiver.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "database", "", "path to the sqlite database")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "root directory of the archive")
	rootCmd.PersistentFlags().StringVar(&cookie, "cookie", "", "session cookie for authenticated pages")

	rootCmd.SetVersionTemplate(`furarchiver {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration from file, environment and
// the global flags
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if databasePath != "" {
		flags["database"] = databasePath
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cookie != "" {
		flags["cookie"] = cookie
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newArchiver loads the configuration and builds the pipeline
func newArchiver() (*archiver.Archiver, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := archiver.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
