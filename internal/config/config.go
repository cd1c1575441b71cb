// Package config loads and saves the tool configuration: run behavior,
// exception files, and the eligibility policy toggles.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Swingft/dyncall/internal/classify"
)

// PolicyConfig exposes the eligibility and risk toggles.
type PolicyConfig struct {
	MaxParams                            int      `yaml:"max_params" mapstructure:"max_params"`
	SkipExternalExtensions               bool     `yaml:"skip_external_extensions" mapstructure:"skip_external_extensions"`
	SkipExternalProtocolReqs             bool     `yaml:"skip_external_protocol_reqs" mapstructure:"skip_external_protocol_reqs"`
	AllowInternalProtocolReqs            bool     `yaml:"allow_internal_protocol_reqs" mapstructure:"allow_internal_protocol_reqs"`
	SkipExternalProtocolExtensionMembers bool     `yaml:"skip_external_protocol_extension_members" mapstructure:"skip_external_protocol_extension_members"`
	KeepOverrides                        bool     `yaml:"keep_overrides" mapstructure:"keep_overrides"`
	TypeAllowlist                        []string `yaml:"type_allowlist" mapstructure:"type_allowlist"`
}

// Classify converts the toggles into the classifier's policy value.
func (p PolicyConfig) Classify() classify.Policy {
	return classify.Policy{
		MaxParams:                            p.MaxParams,
		SkipExternalExtensions:               p.SkipExternalExtensions,
		SkipExternalProtocolReqs:             p.SkipExternalProtocolReqs,
		AllowInternalProtocolReqs:            p.AllowInternalProtocolReqs,
		SkipExternalProtocolExtensionMembers: p.SkipExternalProtocolExtensionMembers,
		KeepOverrides:                        p.KeepOverrides,
		TypeAllowlist:                        p.TypeAllowlist,
	}
}

// Config holds all settings for one run. Struct tags control how keys
// map from the YAML file and DYNCALL_* environment variables.
type Config struct {
	SourceDirectory string `yaml:"source_directory" mapstructure:"source_directory"`
	TargetDirectory string `yaml:"target_directory" mapstructure:"target_directory"`
	Overwrite       bool   `yaml:"overwrite" mapstructure:"overwrite"`

	Silent bool `yaml:"silent" mapstructure:"silent"`
	Debug  bool `yaml:"debug" mapstructure:"debug"`
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`

	SkipUI          bool `yaml:"skip_ui" mapstructure:"skip_ui"`
	IncludePackages bool `yaml:"include_packages" mapstructure:"include_packages"`
	Inject          bool `yaml:"inject" mapstructure:"inject"`
	IncludeRisky    bool `yaml:"include_risky" mapstructure:"include_risky"`
	Jobs            int  `yaml:"jobs" mapstructure:"jobs"`

	Exceptions []string `yaml:"exceptions" mapstructure:"exceptions"`
	DumpDir    string   `yaml:"dump_dir" mapstructure:"dump_dir"`

	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`
}

// DefaultConfigFile is the path probed when no --config flag is given.
const DefaultConfigFile = "dyncall.yaml"

// DefaultConfig returns the configuration matching the original CLI
// defaults.
func DefaultConfig() *Config {
	return &Config{
		SkipUI:          false,
		IncludePackages: true,
		Inject:          true,
		IncludeRisky:    false,
		Jobs:            0,
		Policy: PolicyConfig{
			MaxParams:                            10,
			SkipExternalExtensions:               true,
			SkipExternalProtocolReqs:             true,
			AllowInternalProtocolReqs:            true,
			SkipExternalProtocolExtensionMembers: true,
			KeepOverrides:                        false,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("skip_ui", cfg.SkipUI)
	v.SetDefault("include_packages", cfg.IncludePackages)
	v.SetDefault("inject", cfg.Inject)
	v.SetDefault("include_risky", cfg.IncludeRisky)
	v.SetDefault("jobs", cfg.Jobs)
	v.SetDefault("policy.max_params", cfg.Policy.MaxParams)
	v.SetDefault("policy.skip_external_extensions", cfg.Policy.SkipExternalExtensions)
	v.SetDefault("policy.skip_external_protocol_reqs", cfg.Policy.SkipExternalProtocolReqs)
	v.SetDefault("policy.allow_internal_protocol_reqs", cfg.Policy.AllowInternalProtocolReqs)
	v.SetDefault("policy.skip_external_protocol_extension_members", cfg.Policy.SkipExternalProtocolExtensionMembers)
	v.SetDefault("policy.keep_overrides", cfg.Policy.KeepOverrides)
}

// LoadConfig reads configuration from the YAML file at configPath,
// layered over defaults and DYNCALL_* environment variables. An empty
// configPath probes DefaultConfigFile and falls back to defaults when
// it is absent; an explicit path must exist.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DYNCALL")
	v.AutomaticEnv()
	setDefaults(v, cfg)

	explicit := configPath != ""
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if _, err := os.Stat(configPath); err == nil {
		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, readErr)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("checking config file %s: %w", configPath, err)
	}

	// Environment variables beat file values for the run toggles.
	for key, apply := range envOverrides {
		if os.Getenv("DYNCALL_"+envKey(key)) != "" {
			apply(cfg, v)
		}
	}
	return cfg, nil
}

var envOverrides = map[string]func(*Config, *viper.Viper){
	"silent":           func(c *Config, v *viper.Viper) { c.Silent = v.GetBool("silent") },
	"debug":            func(c *Config, v *viper.Viper) { c.Debug = v.GetBool("debug") },
	"jobs":             func(c *Config, v *viper.Viper) { c.Jobs = v.GetInt("jobs") },
	"skip_ui":          func(c *Config, v *viper.Viper) { c.SkipUI = v.GetBool("skip_ui") },
	"include_packages": func(c *Config, v *viper.Viper) { c.IncludePackages = v.GetBool("include_packages") },
	"include_risky":    func(c *Config, v *viper.Viper) { c.IncludeRisky = v.GetBool("include_risky") },
	"dump_dir":         func(c *Config, v *viper.Viper) { c.DumpDir = v.GetString("dump_dir") },
}

func envKey(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// SaveConfig writes the default configuration to configPath.
func SaveConfig(configPath string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", configPath, err)
	}
	return nil
}
