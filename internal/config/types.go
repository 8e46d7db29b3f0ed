// Package config loads and validates the bot configuration.
//
// Config files may be JSON or YAML; YAML is coerced to JSON so both go
// through the same strict decoder (unknown fields are rejected early).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Feed      FeedConfig      `json:"feed"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Logging   LoggingConfig   `json:"logging"`

	// AdminFile is a newline/whitespace-delimited list of usernames allowed
	// to manage subscriptions for other chats.
	AdminFile string `json:"admin_file"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the BOT_TOKEN
	// environment variable instead (a .env file is honored).
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type FeedConfig struct {
	URL string `json:"url"`
	// FetchTimeout is a Go duration string bounding one feed request.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type BroadcastConfig struct {
	// Interval is a Go duration string between broadcast cycles.
	Interval string `json:"interval,omitempty"`
	// SendRatePerSec caps fan-out sends per second; 0 disables limiting.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Validate checks required fields and resolves the token from the
// environment when the file leaves it empty.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		c.Telegram.Token = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	}
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token (or BOT_TOKEN env) is required"))
	}
	if strings.TrimSpace(c.Feed.URL) == "" {
		errs = append(errs, errors.New("feed.url is required"))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if strings.TrimSpace(c.AdminFile) == "" {
		errs = append(errs, errors.New("admin_file is required"))
	}
	return errors.Join(errs...)
}

// PollTimeout returns the parsed long-poll timeout.
func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
}

// FetchTimeout returns the parsed feed request timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("feed.fetch_timeout", c.Feed.FetchTimeout, 30*time.Second)
}

// BusyTimeout returns the parsed sqlite busy timeout.
func (c *Config) BusyTimeout() (time.Duration, error) {
	return ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
}

// Interval returns the parsed broadcast interval.
func (c *Config) Interval() (time.Duration, error) {
	return ParseDurationOrDefault("broadcast.interval", c.Broadcast.Interval, 10*time.Minute)
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
