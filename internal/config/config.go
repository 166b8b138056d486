package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	FeedGoogle = "google"
	FeedICS    = "ics"
)

// Config is the job configuration. It is built once in main and passed
// down; nothing below main reads the environment.
type Config struct {
	// FeedKind selects the fetcher: "google" (Calendar v3 events endpoint)
	// or "ics" (raw iCalendar subscription).
	FeedKind string
	// FeedURL is the events endpoint or ICS URL.
	FeedURL string
	// APIKey is the static Google API key; unused for ics.
	APIKey string

	WebhookURL string

	// StatePath is the snapshot file. Its extension picks the format.
	StatePath string

	// Timezone is the IANA zone of the fetch window and of stored times.
	Timezone    string
	HorizonDays int

	HTTPTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Schedule is an optional cron spec. Empty means run once and exit.
	Schedule string

	AddedTitle   string
	RemovedTitle string
}

// MissingError lists required settings that were not provided.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "config: missing required " + strings.Join(e.Keys, ", ")
}

// Load reads configuration from the environment and, when path is set,
// from that file first. Environment variables use the RESVWATCH_ prefix
// (RESVWATCH_FEED_URL, ...); the original unprefixed names CALENDAR_URL,
// GOOGLE_API_KEY and WEBHOOK_URL are accepted as aliases.
//
// Load does not validate; call Validate.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RESVWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed.kind", FeedGoogle)
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.api_key", "")
	v.SetDefault("webhook.url", "")
	v.SetDefault("state.path", "state.toml")
	v.SetDefault("timezone", "Asia/Tokyo")
	v.SetDefault("horizon_days", 14)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("schedule", "")
	v.SetDefault("report.added_title", "")
	v.SetDefault("report.removed_title", "")

	_ = v.BindEnv("feed.kind", "RESVWATCH_FEED_KIND")
	_ = v.BindEnv("feed.url", "RESVWATCH_FEED_URL", "CALENDAR_URL")
	_ = v.BindEnv("feed.api_key", "RESVWATCH_FEED_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("webhook.url", "RESVWATCH_WEBHOOK_URL", "WEBHOOK_URL")
	_ = v.BindEnv("state.path", "RESVWATCH_STATE_PATH", "STATE_PATH")
	_ = v.BindEnv("timezone", "RESVWATCH_TIMEZONE")
	_ = v.BindEnv("horizon_days", "RESVWATCH_HORIZON_DAYS")
	_ = v.BindEnv("http.timeout", "RESVWATCH_HTTP_TIMEOUT")
	_ = v.BindEnv("log.level", "RESVWATCH_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "RESVWATCH_LOG_FORMAT")
	_ = v.BindEnv("schedule", "RESVWATCH_SCHEDULE")
	_ = v.BindEnv("report.added_title", "RESVWATCH_REPORT_ADDED_TITLE")
	_ = v.BindEnv("report.removed_title", "RESVWATCH_REPORT_REMOVED_TITLE")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("http.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("config: http.timeout: %w", err)
	}

	return Config{
		FeedKind:     strings.ToLower(strings.TrimSpace(v.GetString("feed.kind"))),
		FeedURL:      strings.TrimSpace(v.GetString("feed.url")),
		APIKey:       strings.TrimSpace(v.GetString("feed.api_key")),
		WebhookURL:   strings.TrimSpace(v.GetString("webhook.url")),
		StatePath:    strings.TrimSpace(v.GetString("state.path")),
		Timezone:     strings.TrimSpace(v.GetString("timezone")),
		HorizonDays:  v.GetInt("horizon_days"),
		HTTPTimeout:  timeout,
		LogLevel:     v.GetString("log.level"),
		LogFormat:    v.GetString("log.format"),
		Schedule:     strings.TrimSpace(v.GetString("schedule")),
		AddedTitle:   v.GetString("report.added_title"),
		RemovedTitle: v.GetString("report.removed_title"),
	}, nil
}

// Validate checks required values and value ranges. Every missing
// required key is reported together in a *MissingError.
func (c Config) Validate() error {
	var missing []string
	if c.FeedURL == "" {
		missing = append(missing, "feed.url")
	}
	if c.FeedKind == FeedGoogle && c.APIKey == "" {
		missing = append(missing, "feed.api_key")
	}
	if c.WebhookURL == "" {
		missing = append(missing, "webhook.url")
	}
	if c.StatePath == "" {
		missing = append(missing, "state.path")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	switch c.FeedKind {
	case FeedGoogle, FeedICS:
	default:
		return fmt.Errorf("config: unknown feed.kind %q", c.FeedKind)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.HorizonDays <= 0 {
		return errors.New("config: horizon_days must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: http.timeout must be positive")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("config: schedule: %w", err)
		}
	}
	return nil
}

// Location loads Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, errors.New("config: timezone is empty")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
