package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateFeedback(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.MaxUploadMiB > 2048 {
		return errors.New("media.max_upload_mib must not exceed 2048")
	}
	return nil
}

func (c *Config) validateFeedback() error {
	for _, model := range c.Feedback.Models {
		if strings.TrimSpace(model) == "" {
			return errors.New("feedback.models must not contain empty entries")
		}
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.MaxAttempts > 1000 {
		return errors.New("poll.max_attempts must not exceed 1000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
