// Package cmd implements the command-line interface for figscan.
// It provides the root command and subcommands for discovering figpack
// figure references in public repositories.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"

	"github.com/figpack/figscan/cmd/run"
	"github.com/figpack/figscan/cmd/scan"
	"github.com/figpack/figscan/cmd/schedule"
	cmdsearch "github.com/figpack/figscan/cmd/search"
	"github.com/figpack/figscan/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands
	Debug bool

	// rootCmd represents the root command for the figscan CLI.
	rootCmd = &cobra.Command{
		Use:   "figscan",
		Short: "Find figpack figure references in public repositories",
		Long: `figscan searches public GitHub repositories for Markdown files that
reference https://figures.figpack.org/ URLs and publishes a consolidated
JSON index of (repo, file, url) records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before creating logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	// Initialize configuration
	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	// Execute the root command with a fresh context
	return rootCmd.ExecuteContext(context.Background())
}

// init initializes the root command and its subcommands.
func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("figscan version %s\n", "1.0.0")
		},
	})

	// Add subcommands
	rootCmd.AddCommand(run.Command())
	rootCmd.AddCommand(cmdsearch.Command())
	rootCmd.AddCommand(scan.Command())
	rootCmd.AddCommand(schedule.Command())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	// Set config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Enable automatic environment variable reading BEFORE setting defaults
	// This ensures environment variables take precedence over defaults
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults (only used if environment variables or config file don't provide values)
	setDefaults()

	// Read config file
	// Note: Config file is optional - if not found, we'll use defaults and environment variables
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Config file not found: %v (using defaults and environment variables)\n", err)
	}

	// Bind command-line flags to Viper
	if err := bindCommandLineFlags(); err != nil {
		return err
	}

	// Map environment variables to config keys
	if err := bindAppEnvVars(); err != nil {
		return err
	}

	// Set development logging settings
	setupDevelopmentLogging()

	return nil
}

// bindCommandLineFlags binds command-line flags to Viper.
func bindCommandLineFlags() error {
	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("failed to bind config flag: %w", err)
	}
	return nil
}

// bindAppEnvVars binds application and logger environment variables to config keys.
func bindAppEnvVars() error {
	if err := viper.BindEnv("app.environment", "APP_ENV"); err != nil {
		return fmt.Errorf("failed to bind APP_ENV: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("logger.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logger.encoding", "LOG_FORMAT"); err != nil {
		return fmt.Errorf("failed to bind LOG_FORMAT: %w", err)
	}
	// The token raises search rate limits; absence only reduces throughput.
	if err := viper.BindEnv("search.token", "GITHUB_TOKEN"); err != nil {
		return fmt.Errorf("failed to bind GITHUB_TOKEN: %w", err)
	}
	if err := viper.BindEnv("fetch.workdir", "FIGSCAN_WORKDIR"); err != nil {
		return fmt.Errorf("failed to bind FIGSCAN_WORKDIR: %w", err)
	}
	if err := viper.BindEnv("output.path", "FIGSCAN_OUT"); err != nil {
		return fmt.Errorf("failed to bind FIGSCAN_OUT: %w", err)
	}
	return nil
}

// setupDevelopmentLogging configures development logging settings based on environment and debug flag.
func setupDevelopmentLogging() {
	// Check both the flag variable and Viper to ensure we catch the debug flag
	debugFlag := Debug || viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	if debugFlag {
		viper.Set("logger.level", "debug")
	}

	// Set development mode features (formatting, colors) if in development
	// environment, without changing the log level unless explicitly requested
	if isDev {
		viper.Set("logger.development", true)
		viper.Set("logger.enable_color", true)
		viper.Set("logger.encoding", "console")
		if debugFlag {
			viper.Set("logger.level", "debug")
		}
	}

	// Synchronize global Debug variable with Viper's value
	Debug = debugFlag
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults - production safe
	viper.SetDefault("app", map[string]any{
		"name":        "figscan",
		"version":     "1.0.0",
		"environment": "production",
		"debug":       false,
	})

	// Logger defaults - production safe
	viper.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "json",
		"output_paths": []string{"stderr"},
		"enable_color": false,
	})

	// Search defaults
	viper.SetDefault("search", map[string]any{
		"query":           config.DefaultQuery,
		"max_pages":       config.DefaultMaxPages,
		"per_page":        config.DefaultPerPage,
		"max_retries":     config.DefaultMaxRetries,
		"request_timeout": config.DefaultSearchRequestTimeout.String(),
	})

	// Fetch defaults
	viper.SetDefault("fetch", map[string]any{
		"workdir": config.DefaultWorkdir,
		"timeout": config.DefaultFetchTimeout.String(),
	})

	// Scan defaults
	viper.SetDefault("scan", map[string]any{
		"timeout":    config.DefaultScanTimeout.String(),
		"extensions": config.DefaultExtensions,
	})

	// Output defaults
	viper.SetDefault("output", map[string]any{
		"path": config.DefaultOutputPath,
	})

	// Worker defaults
	viper.SetDefault("workers", map[string]any{
		"pool_size":     config.DefaultPoolSize,
		"drain_timeout": config.DefaultDrainTimeout.String(),
	})
}
