// Package config loads and validates site discovery configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sitediscovery/internal/logging"
	"github.com/JakeFAU/sitediscovery/internal/scanner"
)

// EnvPrefix prefixes every environment override, e.g. SITEDISCOVERY_DISCOVERY_INCLUDE_WWW.
const EnvPrefix = "SITEDISCOVERY"

// DefaultWorkDir is the working directory used when none is configured.
const DefaultWorkDir = "/etc/zabbix"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Output    OutputConfig    `mapstructure:"output"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DiscoveryConfig governs scanning, filtering and site derivation.
type DiscoveryConfig struct {
	WorkDir            string   `mapstructure:"work_dir"`
	NginxVhostsPath    string   `mapstructure:"nginx_vhosts_path"`
	ApacheVhostsPath   string   `mapstructure:"apache_vhosts_path"`
	IncludeWWW         bool     `mapstructure:"include_www"`
	IncludeCustomPorts bool     `mapstructure:"include_custom_ports"`
	IgnoreList         []string `mapstructure:"ignore_list"`
	Redirect302        bool     `mapstructure:"redirect_302"`
	ExcludeHTTP        bool     `mapstructure:"exclude_http"`
	IncludeAliases     bool     `mapstructure:"include_aliases"`
	PunycodeURLs       bool     `mapstructure:"punycode_urls"`
}

// OutputConfig controls manifest rendering and destination.
type OutputConfig struct {
	UseDataProperty bool   `mapstructure:"use_data_property"`
	File            string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServerConfig controls HTTP server behavior in serve mode.
type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	APIKey         string  `mapstructure:"api_key"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LoggingConfig toggles zap development features and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"work-dir":             "discovery.work_dir",
	"nginx-vhosts-path":    "discovery.nginx_vhosts_path",
	"apache-vhosts-path":   "discovery.apache_vhosts_path",
	"include-www":          "discovery.include_www",
	"include-custom-ports": "discovery.include_custom_ports",
	"ignore-list":          "discovery.ignore_list",
	"redirect-302":         "discovery.redirect_302",
	"exclude-http":         "discovery.exclude_http",
	"include-aliases":      "discovery.include_aliases",
	"punycode-urls":        "discovery.punycode_urls",
	"use-data-property":    "output.use_data_property",
	"output":               "output.file",
	"metrics-textfile":     "metrics.textfile",
	"port":                 "server.port",
	"api-key":              "server.api_key",
	"log-level":            "logging.level",
	"log-development":      "logging.development",
}

// Load builds a Config from defaults, an optional file, the environment and
// any flags of the given set that appear in FlagKeys.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Discovery.IgnoreList = CleanPatterns(cfg.Discovery.IgnoreList)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discovery.work_dir", DefaultWorkDir)
	v.SetDefault("discovery.nginx_vhosts_path", scanner.DefaultNginxRoot)
	v.SetDefault("discovery.apache_vhosts_path", scanner.DefaultApacheRoot)
	v.SetDefault("discovery.include_www", false)
	v.SetDefault("discovery.include_custom_ports", false)
	v.SetDefault("discovery.ignore_list", []string{})
	v.SetDefault("discovery.redirect_302", false)
	v.SetDefault("discovery.exclude_http", false)
	v.SetDefault("discovery.include_aliases", false)
	v.SetDefault("discovery.punycode_urls", false)
	v.SetDefault("output.use_data_property", false)
	v.SetDefault("output.file", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// CleanPatterns trims whitespace and drops empty patterns while keeping order.
// Entries are not split further: comma-separated flag and env values are
// already split by pflag and viper, and YAML list entries may hold commas
// inside {a,b} alternations.
func CleanPatterns(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Discovery.NginxVhostsPath) == "" {
		return fmt.Errorf("discovery.nginx_vhosts_path must not be empty")
	}
	if strings.TrimSpace(c.Discovery.ApacheVhostsPath) == "" {
		return fmt.Errorf("discovery.apache_vhosts_path must not be empty")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server.rate_limit_burst must be >= 0")
	}
	return nil
}
