package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the CLI reads, so
// LIVEQUERY_DB sets --db.
const EnvPrefix = "LIVEQUERY"

// Config is the resolved CLI configuration. Flags win over environment
// variables, which win over the config file.
type Config struct {
	DB      string   `mapstructure:"db"`
	Schema  []string `mapstructure:"schema"`
	Format  string   `mapstructure:"format"`
	Verbose bool     `mapstructure:"verbose"`
}

// LoadConfig resolves cmd's flags against the environment and an optional
// YAML config file.
func LoadConfig(cmd *cobra.Command, file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("format", "text")

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
