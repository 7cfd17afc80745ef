// Package config loads runtime settings from the environment, the signup
// category configuration from a roles file, and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration. Every field can be set through a
// MUSTER_* environment variable; serve flags override them afterwards.
type Config struct {
	DBPath         string `env:"MUSTER_DB_PATH"`
	RolesPath      string `env:"MUSTER_ROLES_PATH"      envDefault:"roles.yaml"`
	DirectoryPath  string `env:"MUSTER_DIRECTORY_PATH"  envDefault:"members.yaml"`
	EventChannelID string `env:"MUSTER_EVENT_CHANNEL_ID"`
	StaffRoleID    string `env:"MUSTER_STAFF_ROLE_ID"`
	CommandPrefix  string `env:"MUSTER_COMMAND_PREFIX"  envDefault:"!"`
	Timezone       string `env:"MUSTER_TIMEZONE"        envDefault:"America/New_York"`
	TimeFormat     string `env:"MUSTER_TIME_FORMAT"     envDefault:"Monday, January 02, 2006 15:04"`

	ReminderLead     time.Duration `env:"MUSTER_REMINDER_LEAD"      envDefault:"15m"`
	ExpiryGrace      time.Duration `env:"MUSTER_EXPIRY_GRACE"       envDefault:"24h"`
	ReminderInterval time.Duration `env:"MUSTER_REMINDER_INTERVAL"  envDefault:"1m"`
	ExpiryInterval   time.Duration `env:"MUSTER_EXPIRY_INTERVAL"    envDefault:"15m"`
	SuppressionTTL   time.Duration `env:"MUSTER_SUPPRESSION_TTL"    envDefault:"30s"`
	RenderDebounce   time.Duration `env:"MUSTER_RENDER_DEBOUNCE"    envDefault:"100ms"`

	BlockStaffSignups bool `env:"MUSTER_BLOCK_STAFF_SIGNUPS" envDefault:"false"`

	LogLevel  string `env:"MUSTER_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"MUSTER_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config. It does not validate.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StaffRoleID) == "" {
		errs = append(errs, errors.New("staff role id is required"))
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		errs = append(errs, errors.New("command prefix cannot be empty"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("unknown timezone %q", c.Timezone))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"reminder lead", c.ReminderLead},
		{"expiry grace", c.ExpiryGrace},
		{"reminder interval", c.ReminderInterval},
		{"expiry interval", c.ExpiryInterval},
		{"suppression ttl", c.SuppressionTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.RenderDebounce < 0 {
		errs = append(errs, fmt.Errorf("render debounce cannot be negative, got %s", c.RenderDebounce))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatJSON {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
