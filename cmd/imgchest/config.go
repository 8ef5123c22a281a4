package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"imgchest/pkg/config"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgchest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGCHEST_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is written to $HOME/.config/imgchest/config.yaml unless a
different path is given with --config. The API token is never written
to this file; use 'imgchest auth login' for that.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source.

The API token, if any, is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Output and log paths`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the file to adjust downloads, rate limits and logging")
	fmt.Fprintln(out, "2. Run 'imgchest config validate' to check it")
	fmt.Fprintln(out, "3. Run 'imgchest auth login' to store an API token")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	resolveToken(cfg, log)

	data, err := yaml.Marshal(cfg.Sanitized())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	if configFile != "" {
		fmt.Fprintf(out, "\n# configuration file: %s\n", configFile)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	var problems []error
	if err := os.MkdirAll(cfg.Download.OutputDirectory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.API.Token == "" {
		fmt.Fprintln(out, "warning: no API token configured; only public reads will work")
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		fmt.Fprintln(out, "warning: client-side rate limiting is disabled")
	}
	fmt.Fprintln(out, "Configuration is valid")
	return nil
}
