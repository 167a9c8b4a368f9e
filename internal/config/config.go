// Package config provides configuration management for the mediacore-probe
// CLI using Viper. The core decoder/demuxer packages never import this
// package: they take functional options (Option funcs such as WithLogger or
// h264.WithReorderDepthOverride) at construction time, and this package's
// only job is turning a config file/env/flags into a Config the CLI layer
// maps onto those options.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jmylchreest/mediacore/internal/logging"
)

// Default tunables, overridable via config file, env (MEDIACORE_*), or flags.
const (
	defaultLogLevel             = "info"
	defaultLogFormat            = "json"
	defaultReorderDepthOverride = 0 // 0 == keep the decoder's default depth
	defaultMaxReferenceFrames   = 16
	defaultAACLeadingTrim       = -1 // -1 == derive from extra_data presence
	defaultProbeMaxPackets      = 2000
)

// Config holds all configuration for mediacore-probe.
type Config struct {
	Logging  logging.Config `mapstructure:"logging"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Demuxer  DemuxerConfig  `mapstructure:"demuxer"`
}

// DecoderConfig carries overrides for decoder frame-ordering / trim defaults.
type DecoderConfig struct {
	// ReorderDepthOverride forces the H.264 reorder-buffer depth; 0 keeps the
	// decoder's default depth. The MPEG-4 decoder does not take it.
	ReorderDepthOverride int `mapstructure:"reorder_depth_override"`

	// MaxReferenceFrames clamps the H.264 DPB size regardless of level.
	MaxReferenceFrames int `mapstructure:"max_reference_frames"`

	// AACLeadingTrim overrides the AAC encoder-delay sample count; -1 derives
	// it from extra_data presence (see codec/aac).
	AACLeadingTrim int `mapstructure:"aac_leading_trim"`
}

// DemuxerConfig carries overrides for demuxer probing.
type DemuxerConfig struct {
	// ProbeMaxPackets bounds the MPEG-TS PAT/PMT probe pass (spec.md §4.3).
	ProbeMaxPackets int `mapstructure:"probe_max_packets"`
}

// Load reads configuration from the given file path (may be empty), then
// environment variables prefixed MEDIACORE_, applying defaults for anything
// unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIACORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
	v.SetDefault("decoder.reorder_depth_override", defaultReorderDepthOverride)
	v.SetDefault("decoder.max_reference_frames", defaultMaxReferenceFrames)
	v.SetDefault("decoder.aac_leading_trim", defaultAACLeadingTrim)
	v.SetDefault("demuxer.probe_max_packets", defaultProbeMaxPackets)
}
