package cmd

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/mediacore/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing mediacore-probe configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  mediacore-probe config dump > config.yaml

Configuration can be set via:
  - Config file (--config path.yaml)
  - Environment variables (MEDIACORE_DECODER_MAX_REFERENCE_FRAMES, etc.)

Environment variables use the MEDIACORE_ prefix and underscores for nesting.
Example: decoder.max_reference_frames -> MEDIACORE_DECODER_MAX_REFERENCE_FRAMES`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map keyed by its mapstructure tags, for
// human-readable YAML output.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		if field.Kind() == reflect.Struct {
			result[key] = toMap(field.Interface())
		} else {
			result[key] = field.Interface()
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Load config with defaults only (no file, no env overrides applied
	// here beyond what's already in the process environment).
	c, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(c)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# mediacore-probe Configuration File")
	fmt.Println("# ===================================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   MEDIACORE_LOGGING_LEVEL, MEDIACORE_LOGGING_FORMAT")
	fmt.Println("#   MEDIACORE_DECODER_REORDER_DEPTH_OVERRIDE")
	fmt.Println("#   MEDIACORE_DECODER_MAX_REFERENCE_FRAMES")
	fmt.Println("#   MEDIACORE_DECODER_AAC_LEADING_TRIM")
	fmt.Println("#   MEDIACORE_DEMUXER_PROBE_MAX_PACKETS")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
