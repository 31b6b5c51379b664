package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	gatehttp "github.com/goldengate/goldengate/internal/adapter/inbound/http"
	"github.com/goldengate/goldengate/internal/adapter/outbound/audit"
	"github.com/goldengate/goldengate/internal/adapter/outbound/cel"
	"github.com/goldengate/goldengate/internal/adapter/outbound/notify"
	"github.com/goldengate/goldengate/internal/adapter/outbound/timelock"
	"github.com/goldengate/goldengate/internal/adapter/outbound/upstream"
	"github.com/goldengate/goldengate/internal/config"
	"github.com/goldengate/goldengate/internal/domain/policy"
	"github.com/goldengate/goldengate/internal/domain/proxy"
	"github.com/goldengate/goldengate/internal/domain/rule"
)

var rulesFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the goldengate proxy server.

Examples:
  # Start with config files from the standard locations
  goldengate start

  # Start with explicit files
  goldengate --config /path/to/goldengate.yaml start --rules /path/to/goldengate.conf`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&rulesFile, "rules", "", "ruleset config file (default: searched goldengate.conf)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stderr keeps stdout clean for shell pipelines around the CLI.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit sink, shared by every log rule through the rule Env.
	var sink rule.Sink
	if cfg.Audit.Dir != "" {
		fileSink, err := audit.NewFileSink(cfg.Audit.Dir)
		if err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
		defer fileSink.Close()
		sink = fileSink
	}

	// Precedence: --rules flag, then rules.path from the gateway config,
	// then the historical search order.
	explicit := rulesFile
	if explicit == "" {
		explicit = cfg.Rules.Path
	}
	rulesPath, err := config.FindRulesetFile(explicit)
	if err != nil {
		return err
	}

	env := &rule.Env{Audit: sink}
	rulesets, err := rule.LoadConfig(rulesPath, env)
	if err != nil {
		return fmt.Errorf("load rulesets from %s: %w", rulesPath, err)
	}
	for i, rs := range rulesets {
		logger.Info("ruleset compiled",
			slog.Int("index", i),
			slog.String("fingerprint", rs.Fingerprint()))
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	broker := openBroker(cfg, logger)

	registry := prometheus.NewRegistry()
	metrics := gatehttp.NewMetrics(registry)

	policies, err := buildPolicies(cfg, store, broker, metrics, logger)
	if err != nil {
		return fmt.Errorf("build policies: %w", err)
	}

	client := upstream.NewClient(cfg.UpstreamTimeout(), logger)
	pipeline := proxy.NewPipeline(rulesets, policies, client, logger)
	handler := gatehttp.NewHandler(pipeline, metrics, logger)

	server := gatehttp.NewServer(handler, registry,
		gatehttp.WithAddr(cfg.Server.Addr),
		gatehttp.WithMetricsAddr(cfg.Server.MetricsAddr),
		gatehttp.WithLogger(logger),
	)
	return server.Run(ctx)
}

// openStore selects the time-lock store from config.
func openStore(cfg *config.Config) (policy.Store, error) {
	switch cfg.TimeLock.Store {
	case "sqlite":
		store, err := timelock.NewSQLiteStore(cfg.TimeLock.Path)
		if err != nil {
			return nil, fmt.Errorf("time lock store: %w", err)
		}
		return store, nil
	default:
		return timelock.NewMemoryStore(), nil
	}
}

// openBroker selects the notification broker from config.
func openBroker(cfg *config.Config, logger *slog.Logger) policy.Broker {
	if cfg.Notifications.Mode == "file" {
		return notify.NewFileBroker(cfg.Notifications.Path)
	}
	return notify.NewLogBroker(logger)
}

// buildPolicies compiles the config policy list into the ordered policy
// chain used by the authorize step.
func buildPolicies(cfg *config.Config, store policy.Store, broker policy.Broker, metrics *gatehttp.Metrics, logger *slog.Logger) ([]policy.Policy, error) {
	policies := make([]policy.Policy, 0, len(cfg.Policies))
	for i, pc := range cfg.Policies {
		matcher, err := buildMatcher(pc, logger)
		if err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}

		var pol policy.Policy
		switch pc.Effect {
		case "allow":
			pol = policy.Allow(matcher)
		case "deny":
			pol = policy.Deny(matcher)
		case "timelock":
			duration, err := time.ParseDuration(pc.LockDuration)
			if err != nil {
				return nil, fmt.Errorf("policies[%d]: invalid lock_duration %q", i, pc.LockDuration)
			}
			template, err := os.ReadFile(pc.TemplateFile)
			if err != nil {
				return nil, fmt.Errorf("policies[%d]: read template: %w", i, err)
			}
			pol = policy.NewTimeLock(matcher, duration, store, broker, string(template), pc.Recipients, logger)
		}
		policies = append(policies, gatehttp.InstrumentPolicy(pol, metrics))
	}
	return policies, nil
}

// buildMatcher conjoins whichever matcher fields the policy config sets.
// A policy with none is a catchall.
func buildMatcher(pc config.PolicyConfig, logger *slog.Logger) (policy.Matcher, error) {
	var parts policy.All
	if pc.AWSAction != "" {
		parts = append(parts, policy.AWSAction(pc.AWSAction))
	}
	if len(pc.Entities) > 0 {
		parts = append(parts, policy.Entities(pc.Entities))
	}
	if pc.CEL != "" {
		m, err := cel.NewMatcher(pc.CEL, logger)
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}
	if len(parts) == 0 {
		return policy.Always{}, nil
	}
	return parts, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
