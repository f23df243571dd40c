package utils

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	port         string
	databasePath string

	feedTimeout  time.Duration
	syncSchedule string

	metricCollectionInterval time.Duration

	location      *time.Location
	publicBaseURL string
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		databasePath: func() string {
			databasePath := os.Getenv("DATABASE_PATH")
			if databasePath == "" {
				databasePath = "./sqlite.db"
			}
			slog.Debug("env", "DATABASE_PATH", databasePath)
			return databasePath
		}(),

		feedTimeout: func() time.Duration {
			feedTimeout := os.Getenv("FEED_TIMEOUT")
			if feedTimeout == "" {
				feedTimeout = "30s"
			}
			duration, err := time.ParseDuration(feedTimeout)
			if err != nil || duration <= 0 {
				slog.Error("invalid FEED_TIMEOUT", "value", feedTimeout, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "FEED_TIMEOUT", duration)
			return duration
		}(),
		syncSchedule: func() string {
			// set but empty disables the periodic sync
			syncSchedule, ok := os.LookupEnv("SYNC_SCHEDULE")
			if !ok {
				syncSchedule = "@every 1h"
			}
			syncSchedule = strings.TrimSpace(syncSchedule)
			if syncSchedule != "" {
				if _, err := cron.ParseStandard(syncSchedule); err != nil {
					slog.Error("invalid SYNC_SCHEDULE", "value", syncSchedule, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "SYNC_SCHEDULE", syncSchedule)
			return syncSchedule
		}(),

		metricCollectionInterval: func() time.Duration {
			interval := os.Getenv("METRIC_COLLECTION_INTERVAL")
			if interval == "" {
				interval = "15s"
			}
			duration, err := time.ParseDuration(interval)
			if err != nil || duration <= 0 {
				slog.Error("invalid METRIC_COLLECTION_INTERVAL", "value", interval, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", duration)
			return duration
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Debug("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),
		publicBaseURL: func() string {
			publicBaseURL := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
			if publicBaseURL == "" {
				return ""
			}
			if _, err := url.ParseRequestURI(publicBaseURL); err != nil {
				slog.Error("invalid PUBLIC_BASE_URL", "value", publicBaseURL, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "PUBLIC_BASE_URL", publicBaseURL)
			return publicBaseURL
		}(),
	}
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get DATABASE_PATH env, default to ./sqlite.db
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get FEED_TIMEOUT env, default to 30s
func (c *Config) GetFeedTimeout() time.Duration {
	return c.feedTimeout
}

// Get SYNC_SCHEDULE env, default to "@every 1h"; empty when disabled
func (c *Config) GetSyncSchedule() string {
	return c.syncSchedule
}

// Get METRIC_COLLECTION_INTERVAL env, default to 15s
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get PUBLIC_BASE_URL env, without trailing slash
func (c *Config) GetPublicBaseURL() string {
	return c.publicBaseURL
}
