package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes viper with the gateway configuration file and
// environment variables. If configFile is empty, goldengate.yaml/.yml is
// searched in the standard locations.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findGatewayConfig(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("goldengate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: GOLDENGATE_SERVER_ADDR etc.
	viper.SetEnvPrefix("GOLDENGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findGatewayConfig searches the standard locations for goldengate.yaml or
// .yml, mirroring the ruleset file's directories.
func findGatewayConfig() string {
	home, _ := os.UserHomeDir()
	dirs := []string{
		".",
		filepath.Join(home, ".goldengate"),
		"/etc/goldengate",
	}
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "goldengate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys so they can be overridden via
// environment variables.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.metrics_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("upstream.timeout")
	_ = viper.BindEnv("rules.path")
	_ = viper.BindEnv("timelock.store")
	_ = viper.BindEnv("timelock.path")
	_ = viper.BindEnv("notifications.mode")
	_ = viper.BindEnv("notifications.path")
	_ = viper.BindEnv("audit.dir")
	// policies is a list; override via the config file only.
}

// Load reads the gateway configuration, applies environment overrides and
// defaults, and validates the result. A missing config file is not an
// error; everything has a default or an environment override.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// FindRulesetFile returns the ruleset config path: the explicit path when
// given, then $GOLDENGATE_CONFIG, $PWD/goldengate.conf,
// $HOME/.goldengate/goldengate.conf, /etc/goldengate/goldengate.conf.
func FindRulesetFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		os.Getenv("GOLDENGATE_CONFIG"),
		filepath.Join(".", "goldengate.conf"),
		filepath.Join(home, ".goldengate", "goldengate.conf"),
		"/etc/goldengate/goldengate.conf",
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return filepath.Abs(path)
		}
	}
	return "", fmt.Errorf("unable to find goldengate.conf, giving up")
}
