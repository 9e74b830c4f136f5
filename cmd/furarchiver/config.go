package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"furarchiver/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage furarchiver configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FURARCHIVER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd creates an example configuration file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. The session cookie
is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configValidateCmd checks a configuration file
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "furarchiver.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	exampleConfig := `# furarchiver configuration file
#
# Environment variables prefixed with FURARCHIVER_ override these values,
# for example FURARCHIVER_COOKIE or FURARCHIVER_DB_PATH.

# Remote site settings
site:
  base_url: "https://www.furaffinity.net"

  # Session cookie from your browser, needed for mature content
  # and favorites pages
  cookie: ""

  # User agent sent with every request (empty uses the default)
  user_agent: ""

  request_timeout: 30s

# Persistent store
database:
  path: "./furarchiver.db"

# Archive layout root
output:
  root_directory: "./archive"

# Gallery walk settings
walk:
  # Attempts per listing page before declaring the site down
  max_fetch_retries: 10

  # Wait between attempts grows by this step each time
  retry_step: 30s

  # Politeness delay between page fetches
  delay_min: 1s
  delay_max: 2.5s

# Metadata harvest settings
harvest:
  # Also save submission comments
  comments: true

  # Pause after every N submissions
  delay_every: 3
  delay: 1s

# Download worker settings
download:
  content_retries: 5
  thumbnail_retries: 3
  probe_timeout: 10s
  content_delay_min: 1s
  content_delay_max: 4s
  thumbnail_delay_min: 500ms
  thumbnail_delay_max: 1500ms

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Log file path (empty logs to stderr only)
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Printf("Configuration file created: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and add your session cookie if you need logged-in pages")
	fmt.Println("2. Run 'furarchiver config validate' to check it")
	fmt.Println("3. Start archiving with 'furarchiver archive <username>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	displayCfg := *cfg
	if displayCfg.Site.Cookie != "" {
		if len(displayCfg.Site.Cookie) > 8 {
			displayCfg.Site.Cookie = displayCfg.Site.Cookie[:4] + "..." + displayCfg.Site.Cookie[len(displayCfg.Site.Cookie)-4:]
		} else {
			displayCfg.Site.Cookie = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FURARCHIVER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		possiblePaths := []string{
			"furarchiver.yaml",
			"furarchiver.yml",
			".furarchiver.yaml",
			".furarchiver.yml",
			filepath.Join(os.Getenv("HOME"), ".furarchiver.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "furarchiver", "config.yaml"),
		}
		for _, p := range possiblePaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no configuration file found, specify one with --config")
		}
	}

	fmt.Printf("Validating %s\n", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Site.Cookie == "" {
		warnings = append(warnings, "no session cookie configured, mature submissions and favorites may be inaccessible")
	}
	if err := os.MkdirAll(cfg.Output.RootDirectory, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	for _, warn := range warnings {
		fmt.Printf("warning: %s\n", warn)
	}

	fmt.Println("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Site: %s\n", cfg.Site.BaseURL)
	fmt.Printf("  Database: %s\n", cfg.Database.Path)
	fmt.Printf("  Archive root: %s\n", cfg.Output.RootDirectory)
	fmt.Printf("  Max fetch retries: %d\n", cfg.Walk.MaxFetchRetries)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
