package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"imgchest/pkg/auth"
	"imgchest/pkg/config"
	"imgchest/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	apiToken   string
	baseURL    string
	timeout    time.Duration
)

// newCredentialManager is replaced in tests
var newCredentialManager = auth.NewManager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgchest",
	Short: "Read, download and publish imgchest posts",
	Long: `imgchest is a command-line client for imgchest.com.

Public posts are read by scraping the post page and need no account.
Creating and editing posts goes through the API and needs a token:
  - Stored token (use 'imgchest auth login' to store one)
  - Environment variable IMGCHEST_TOKEN
  - The --token flag`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/imgchest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (overrides stored credentials)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for each HTTP request")

	rootCmd.SetVersionTemplate(`imgchest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with command flags and initializes logging
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if apiToken != "" {
		flags["token"] = apiToken
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if timeout > 0 {
		flags["timeout"] = timeout
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

// resolveToken fills cfg.API.Token from the credential store when neither the flag nor the environment set it.
// Finding no token is not an error: scrape mode works without one.
func resolveToken(cfg *config.Config, log logger.Logger) {
	if cfg.API.Token != "" {
		return
	}

	manager, err := newCredentialManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		return
	}

	account, err := manager.RetrieveDefault()
	if err != nil {
		log.Debug("No stored token found")
		return
	}

	cfg.API.Token = account.Token
	log.WithField("account", account.Name).Debug("Using stored token")
}
