// Package main is the entrypoint for the entitlementctl CLI, which verifies
// license material and resolves organization limits from the command line.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openstatushq/entitlements/internal/config"
	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/metrics"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// errInvalid marks a command whose subject failed verification. The result
// has already been printed.
var errInvalid = errors.New("verification failed")

var (
	promOnce sync.Once
	prom     *metrics.Prom
)

// promMetrics returns the process-wide Prometheus metrics.
func promMetrics() *metrics.Prom {
	promOnce.Do(func() {
		prom = metrics.NewProm("entitlements")
	})
	return prom
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	logger     zerolog.Logger

	// licenseConfig is loaded on first use and shared by every verifier the
	// command builds.
	licenseConfig *license.ConfigCache
}

func newRootOptions() *rootOptions {
	opts := newRootOptions()
	opts.licenseConfig = license.NewConfigCache(func() (license.Config, error) {
		cfg, err := opts.loadConfig()
		if err != nil {
			return license.Config{}, err
		}
		return cfg.LicenseConfig(), nil
	})
	return opts
}

// loadConfig reads the config file named by --config, with environment
// overrides.
func (o *rootOptions) loadConfig() (config.ServerConfig, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.ServerConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "entitlementctl",
		Short: "Verify licenses and resolve organization entitlements",
		Long: `entitlementctl verifies license keys, license files and webhook
signatures, maps license entitlements to limits and resolves SSO group
mappings to roles.

Configuration is read from --config (YAML) and the environment.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.InfoLevel
			if opts.debug {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			opts.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
				With().
				Timestamp().
				Logger()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newVerifyKeyCmd(opts),
		newVerifyFileCmd(opts),
		newVerifyWebhookCmd(opts),
		newResolveCmd(opts),
		newMapGroupsCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entitlementctl %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
