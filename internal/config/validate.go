package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMoonraker(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMoonraker() error {
	parsed, err := url.Parse(c.Moonraker.URL)
	if err != nil {
		return fmt.Errorf("moonraker.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("moonraker.url must use http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return errors.New("moonraker.url must include a host")
	}
	return ensurePositiveMap(map[string]int{
		"moonraker.poll_interval":  c.Moonraker.PollInterval,
		"moonraker.status_timeout": c.Moonraker.StatusTimeout,
		"moonraker.file_timeout":   c.Moonraker.FileTimeout,
		"moonraker.info_timeout":   c.Moonraker.InfoTimeout,
	})
}

func (c *Config) validateDedup() error {
	return ensurePositiveMap(map[string]int{
		"dedup.auto_window_seconds":   c.Dedup.AutoWindowSeconds,
		"dedup.upload_window_seconds": c.Dedup.UploadWindowSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
