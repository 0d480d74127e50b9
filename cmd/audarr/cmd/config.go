package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/audarr/internal/config"
	"github.com/jmylchreest/audarr/pkg/bytesize"
	"github.com/jmylchreest/audarr/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing audarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  audarr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/audarr or $HOME/.audarr)
  - Environment variables (AUDARR_SERVER_PORT, AUDARR_DATABASE_DSN, etc.)
  - Command-line flags (for some options)

Environment variables use the AUDARR_ prefix and underscores for nesting
and in place of dashes.
Example: transcode.cache-root -> AUDARR_TRANSCODE_CACHE_ROOT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

const dumpHeader = `# audarr Configuration File
# ==========================
#
# All values shown below are defaults.
# Duration format: 30s, 5m, 1h, 30d
# Size format: 256KB, 5MB
#
# Environment variable overrides:
#   AUDARR_SERVER_HOST, AUDARR_SERVER_PORT
#   AUDARR_DATABASE_DRIVER, AUDARR_DATABASE_DSN
#   AUDARR_MEDIA_ROOT, AUDARR_TRANSCODE_CACHE_ROOT
#   AUDARR_LOGGING_LEVEL, AUDARR_LOGGING_FORMAT
#   etc.
#
`

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rendered, err := yaml.Marshal(configTree(reflect.ValueOf(cfg).Elem()))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, dumpHeader, "\n")
	fmt.Fprint(out, string(rendered))
	return nil
}

// configTree renders a config struct as nested maps keyed by mapstructure
// tag, so the dump round-trips through Load.
func configTree(v reflect.Value) map[string]any {
	tree := make(map[string]any, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(f.Name)
		}
		tree[key] = renderValue(v.Field(i))
	}
	return tree
}

// renderValue prints durations and byte sizes in the human-readable forms
// Load accepts back.
func renderValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case time.Duration:
		return duration.Format(v)
	case config.Duration:
		return duration.Format(v.Duration())
	case config.ByteSize:
		return bytesize.Format(bytesize.Size(v.Bytes()))
	}
	if field.Kind() == reflect.Struct {
		return configTree(field)
	}
	return field.Interface()
}
