// Package config provides configuration types and loading for goldengate.
//
// Two files are involved: the gateway config (goldengate.yaml, loaded
// through viper with environment overrides) describing the server, stores,
// and policies; and the ruleset config (goldengate.conf, a multi-document
// YAML stream) compiled by the rule package. The ruleset file keeps its own
// historical search order, see FindRulesetFile.
package config

import "time"

// Config is the top-level gateway configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream" mapstructure:"upstream"`
	Rules         RulesConfig         `yaml:"rules" mapstructure:"rules"`
	TimeLock      TimeLockConfig      `yaml:"timelock" mapstructure:"timelock"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
	Audit         AuditConfig         `yaml:"audit" mapstructure:"audit"`

	// Policies is the ordered policy list for the authorize step. Empty
	// disables authorization; filter rules alone decide.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"omitempty,dive"`
}

// ServerConfig configures the proxy and metrics listeners.
type ServerConfig struct {
	// Addr is the proxy listen address.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// MetricsAddr enables a separate metrics/health listener. Empty keeps
	// it disabled so the proxy surface stays transparent.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// UpstreamConfig configures the upstream proxy client.
type UpstreamConfig struct {
	// Timeout bounds one upstream round trip, e.g. "30s". Zero selects the
	// client default.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// RulesConfig points at the ruleset file. An empty path falls back to the
// historical search order.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TimeLockConfig selects the time-lock store.
type TimeLockConfig struct {
	// Store is "memory" or "sqlite".
	Store string `yaml:"store" mapstructure:"store" validate:"omitempty,oneof=memory sqlite"`

	// Path is the sqlite database file; required when Store is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// NotificationsConfig selects the notification broker.
type NotificationsConfig struct {
	// Mode is "log" or "file".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=log file"`

	// Path is the JSONL outbox file; required when Mode is "file".
	Path string `yaml:"path" mapstructure:"path"`
}

// AuditConfig configures the audit sink used by audit-stage log rules.
type AuditConfig struct {
	// Dir is the audit log directory. Empty disables the sink.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PolicyConfig describes one policy in the ordered list. Exactly one effect;
// the matcher is the conjunction of whichever of aws_action, entities, and
// cel are present (none means match-always, i.e. a catchall).
type PolicyConfig struct {
	// Effect is "allow", "deny", or "timelock".
	Effect string `yaml:"effect" mapstructure:"effect" validate:"required,oneof=allow deny timelock"`

	AWSAction string   `yaml:"aws_action" mapstructure:"aws_action"`
	Entities  []string `yaml:"entities" mapstructure:"entities"`
	CEL       string   `yaml:"cel" mapstructure:"cel"`

	// Time-lock fields, required when Effect is "timelock".
	LockDuration string   `yaml:"lock_duration" mapstructure:"lock_duration"`
	Recipients   []string `yaml:"recipients" mapstructure:"recipients"`
	TemplateFile string   `yaml:"template_file" mapstructure:"template_file"`
}

// SetDefaults fills in default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "30s"
	}
	if c.TimeLock.Store == "" {
		c.TimeLock.Store = "memory"
	}
	if c.Notifications.Mode == "" {
		c.Notifications.Mode = "log"
	}
}

// UpstreamTimeout parses the upstream timeout; Validate has already checked
// it parses.
func (c *Config) UpstreamTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Upstream.Timeout)
	return d
}
