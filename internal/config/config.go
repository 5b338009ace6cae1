// Package config provides functionality for managing configuration options
// of the mood store service using command-line flags, a JSON config file,
// a .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the service.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// DatabaseDSN holds the Postgres connection string.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`

	// RedisAddr enables the feed cache and the rate limiter when set.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	// PlatformSecret is the HMAC key the host platform signs identity tokens with.
	PlatformSecret string `json:"platform_secret"`

	// TLSCert and TLSKey switch the listener to HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	LogLevel string `json:"log_level"`

	// RecentWindow is how far back the mood feed reaches by default.
	RecentWindow Duration `json:"recent_window"`
	// Retention is the age after which the purger deletes rows.
	Retention Duration `json:"retention"`
	// PurgeInterval is how often the purger runs.
	PurgeInterval Duration `json:"purge_interval"`
	// UpsertLimit is the number of upserts one owner may issue per minute.
	UpsertLimit int `json:"upsert_limit"`
}

// Duration is a time.Duration that reads "72h"-style strings from JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Parse parses the process flags and environment. It exits the process on
// malformed input, the way a misconfigured service should.
func Parse() *Options {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	opts, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}

// ParseArgs builds Options from args and the environment. Precedence, lowest
// first: defaults, flags, the JSON config file, environment variables.
func ParseArgs(args []string) (*Options, error) {
	options := &Options{}
	fs := flag.NewFlagSet("moodmap-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&options.RedisAddr, "r", "", "redis address")
	fs.StringVar(&options.LogLevel, "l", "info", "log level")
	fs.DurationVar(&options.RecentWindow.Duration, "window", 72*time.Hour, "recent mood window")
	fs.DurationVar(&options.Retention.Duration, "retention", 30*24*time.Hour, "purge moods older than this")
	fs.DurationVar(&options.PurgeInterval.Duration, "purge-interval", time.Hour, "purge interval")
	fs.IntVar(&options.UpsertLimit, "upsert-limit", 20, "upserts per owner per minute")
	fs.StringVar(&options.TLSCert, "tls-cert", "", "server certificate (PEM)")
	fs.StringVar(&options.TLSKey, "tls-key", "", "server key (PEM)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		data, err := os.ReadFile(options.Config)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	}

	setString(&options.Port, "SERVER_ADDRESS")
	setString(&options.DatabaseDSN, "DATABASE_DSN")
	setString(&options.RedisAddr, "REDIS_ADDR")
	setString(&options.RedisPassword, "REDIS_PASSWORD")
	setString(&options.PlatformSecret, "PLATFORM_SECRET")
	setString(&options.LogLevel, "LOG_LEVEL")
	setString(&options.TLSCert, "TLS_CERT")
	setString(&options.TLSKey, "TLS_KEY")
	if v := os.Getenv("UPSERT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("UPSERT_LIMIT: %w", err)
		}
		options.UpsertLimit = n
	}

	if options.RecentWindow.Duration <= 0 {
		return nil, errors.New("recent window must be positive")
	}
	return options, nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
