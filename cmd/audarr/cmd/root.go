// Package cmd implements the audarr command line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/audarr/internal/config"
	"github.com/jmylchreest/audarr/internal/observability"
	"github.com/jmylchreest/audarr/internal/version"
)

// cfgFile is the --config flag value, consumed by initConfig.
var cfgFile string

var rootCmd = newRootCmd()

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "audarr",
		Short:   "Caching audio transcoding service",
		Version: version.GetInfo().Short(),
		Long: `audarr is a caching audio transcoder for music libraries. It probes
tracks with ffprobe, transcodes them on demand with ffmpeg, and persists
every finished transcode in an on-disk cache so a given track, format,
and bitrate combination is only ever encoded once.

Concurrent listeners of the same output share a single encoder process,
and later requests are served straight from the cache.`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/audarr, $HOME/.audarr)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "json", "log format (text, json)")

	// The logging flags are read back through Changed instead of being
	// bound to viper: a bound flag wins even at its default value, which
	// would bury AUDARR_LOGGING_* and the config file.
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		return setupLogging(flags)
	}

	return cmd
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig wires the global viper before any command body runs, so flag
// bindings, the config file, and AUDARR_ env vars all land in one place.
func initConfig() {
	used, err := config.Bootstrap(viper.GetViper(), cfgFile)
	cobra.CheckErr(err)
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// setupLogging builds the process logger once flags, environment, and any
// config file have all been read. Precedence, highest first: explicit CLI
// flag, AUDARR_LOGGING_* environment, config file, built-in defaults.
func setupLogging(flags *pflag.FlagSet) error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	if flags.Changed("log-level") {
		level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		format, _ = flags.GetString("log-format")
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}
	// "warning" is accepted as an alias for "warn".
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	observability.SetDefault(observability.NewLoggerWithWriter(logCfg, os.Stderr))
	return nil
}

// mustBindPFlag panics when a viper key cannot be bound to its flag. That
// only happens for a nil flag, which means a typo in the lookup name.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding config key %q: %v", key, err))
	}
}
