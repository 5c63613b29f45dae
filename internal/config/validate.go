package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	minTokenLength = 50

	minActivationInterval = 1 * time.Second
	maxActivationInterval = 1 * time.Hour

	minCategoryTimeout = 10 * time.Millisecond
	maxCategoryTimeout = 30 * time.Second

	maxChannelNameLength = 100
)

// Validate checks every field and returns all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.validateStorage(); err != nil {
		errs = append(errs, err)
	}

	if err := c.validateIntervals(); err != nil {
		errs = append(errs, err)
	}

	if err := c.validateDiscord(); err != nil {
		errs = append(errs, err)
	}

	if err := c.validateLogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.PolicyPath == "" {
		errs = append(errs, fmt.Errorf("POLICY_PATH cannot be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %w", errors.Join(errs...))
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.StorageDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set (via secret or env var)")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.StorageDriver)
	}
	return nil
}

func (c *Config) validateIntervals() error {
	var errs []error

	if c.ActivationInterval < minActivationInterval || c.ActivationInterval > maxActivationInterval {
		errs = append(errs, fmt.Errorf(
			"ACTIVATION_INTERVAL must be between %v and %v, got %v",
			minActivationInterval, maxActivationInterval, c.ActivationInterval,
		))
	}

	if c.CategoryTimeout < minCategoryTimeout || c.CategoryTimeout > maxCategoryTimeout {
		errs = append(errs, fmt.Errorf(
			"VALIDATION_CATEGORY_TIMEOUT must be between %v and %v, got %v",
			minCategoryTimeout, maxCategoryTimeout, c.CategoryTimeout,
		))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout))
	}

	return errors.Join(errs...)
}

// validateDiscord only applies when a token is configured; the console is optional.
func (c *Config) validateDiscord() error {
	if c.Token == "" {
		return nil
	}

	var errs []error
	if len(c.Token) < minTokenLength {
		errs = append(errs, fmt.Errorf(
			"DISCORD_TOKEN appears invalid (too short: %d chars, expected %d+)",
			len(c.Token), minTokenLength,
		))
	}

	if c.DiscordOpsChannel == "" {
		errs = append(errs, fmt.Errorf("DISCORD_OPS_CHANNEL cannot be empty"))
	} else if len(c.DiscordOpsChannel) > maxChannelNameLength {
		errs = append(errs, fmt.Errorf(
			"DISCORD_OPS_CHANNEL must be at most %d characters (Discord limit), got %d",
			maxChannelNameLength, len(c.DiscordOpsChannel),
		))
	}

	return errors.Join(errs...)
}

func (c *Config) validateLogLevel() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}
