package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration using struct tags plus cross-field
// rules the tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if _, err := time.ParseDuration(c.Upstream.Timeout); err != nil {
		return fmt.Errorf("upstream.timeout: invalid duration %q", c.Upstream.Timeout)
	}
	if c.TimeLock.Store == "sqlite" && c.TimeLock.Path == "" {
		return fmt.Errorf("timelock.path is required when timelock.store is sqlite")
	}
	if c.Notifications.Mode == "file" && c.Notifications.Path == "" {
		return fmt.Errorf("notifications.path is required when notifications.mode is file")
	}

	for i, p := range c.Policies {
		if err := p.validate(); err != nil {
			return fmt.Errorf("policies[%d]: %w", i, err)
		}
	}
	return nil
}

func (p *PolicyConfig) validate() error {
	if p.Effect != "timelock" {
		return nil
	}
	if p.LockDuration == "" {
		return fmt.Errorf("lock_duration is required for timelock policies")
	}
	if _, err := time.ParseDuration(p.LockDuration); err != nil {
		return fmt.Errorf("invalid lock_duration %q", p.LockDuration)
	}
	if len(p.Recipients) == 0 {
		return fmt.Errorf("recipients are required for timelock policies")
	}
	if p.TemplateFile == "" {
		return fmt.Errorf("template_file is required for timelock policies")
	}
	return nil
}

// formatValidationErrors turns validator's error list into one actionable
// message per failed field.
func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var msgs []string
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
