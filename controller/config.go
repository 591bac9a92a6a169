// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package controller holds the configuration of a storefront server.
package controller

import (
	"net"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/juju/storefront/internal/auth"
)

var logger = loggo.GetLogger("storefront.controller")

const (
	// ListenAddress is the address the HTTP server listens on.
	ListenAddress = "listen-address"

	// DatabasePath is the path of the sqlite database file.
	DatabasePath = "database-path"

	// JWTSecret is the secret used to sign every token. It is required.
	JWTSecret = "jwt-secret"

	// AccessTokenTTL is how long a login stays valid.
	AccessTokenTTL = "access-token-ttl"

	// VerificationTokenTTL is how long an email verification link stays
	// valid.
	VerificationTokenTTL = "verification-token-ttl"

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = "reset-token-ttl"

	// FrontendURL is the base URL of the links sent in emails.
	FrontendURL = "frontend-url"

	// MailFrom is the sender address of outgoing mail.
	MailFrom = "mail-from"

	// SMTPHost is the mail relay. When it is empty mail is written to the
	// log instead of being sent.
	SMTPHost     = "smtp-host"
	SMTPPort     = "smtp-port"
	SMTPUsername = "smtp-username"
	SMTPPassword = "smtp-password"

	// MailRateLimit is the number of mails that may be sent per minute.
	MailRateLimit = "mail-rate-limit"

	// LoggingConfig is a loggo specification, such as "<root>=INFO".
	LoggingConfig = "logging-config"

	// LogFile is the file logs are written to. When it is empty logs go to
	// stderr.
	LogFile = "log-file"

	// LogFileMaxSize is the size in megabytes at which the log file is
	// rotated.
	LogFileMaxSize = "log-file-max-size"

	// LogFileMaxBackups is the number of rotated log files kept.
	LogFileMaxBackups = "log-file-max-backups"

	// ShutdownTimeout bounds how long in-flight requests are given to
	// finish when the server stops.
	ShutdownTimeout = "shutdown-timeout"
)

const (
	DefaultListenAddress        = ":8080"
	DefaultDatabasePath         = "storefront.db"
	DefaultAccessTokenTTL       = 24 * time.Hour
	DefaultVerificationTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL        = time.Hour
	DefaultFrontendURL          = "http://localhost:8080"
	DefaultMailFrom             = "storefront@localhost"
	DefaultSMTPPort             = 587
	DefaultMailRateLimit        = 30
	DefaultLoggingConfig        = "<root>=INFO"
	DefaultLogFileMaxSize       = 100
	DefaultLogFileMaxBackups    = 2
	DefaultShutdownTimeout      = 30 * time.Second
)

// EnvPrefix prefixes the environment variables that override file
// settings. STOREFRONT_SMTP_HOST sets smtp-host.
const EnvPrefix = "STOREFRONT_"

// SecretKeys are the keys whose values must never be displayed.
var SecretKeys = set.NewStrings(JWTSecret, SMTPPassword)

// Config is the validated configuration of a storefront server.
type Config struct {
	ListenAddress        string        `mapstructure:"listen-address"`
	DatabasePath         string        `mapstructure:"database-path"`
	JWTSecret            string        `mapstructure:"jwt-secret"`
	AccessTokenTTL       time.Duration `mapstructure:"access-token-ttl"`
	VerificationTokenTTL time.Duration `mapstructure:"verification-token-ttl"`
	ResetTokenTTL        time.Duration `mapstructure:"reset-token-ttl"`
	FrontendURL          string        `mapstructure:"frontend-url"`
	MailFrom             string        `mapstructure:"mail-from"`
	SMTPHost             string        `mapstructure:"smtp-host"`
	SMTPPort             int           `mapstructure:"smtp-port"`
	SMTPUsername         string        `mapstructure:"smtp-username"`
	SMTPPassword         string        `mapstructure:"smtp-password"`
	MailRateLimit        int           `mapstructure:"mail-rate-limit"`
	LoggingConfig        string        `mapstructure:"logging-config"`
	LogFile              string        `mapstructure:"log-file"`
	LogFileMaxSize       int           `mapstructure:"log-file-max-size"`
	LogFileMaxBackups    int           `mapstructure:"log-file-max-backups"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown-timeout"`
}

// NewConfig coerces attrs, fills in defaults and validates the result.
// Unknown keys are rejected.
func NewConfig(attrs map[string]interface{}) (Config, error) {
	var unknown []string
	for key := range attrs {
		if !knownKeys.Contains(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, errors.NotValidf("unknown config keys %s", strings.Join(unknown, ", "))
	}

	coerced, err := configChecker.Coerce(attrs, nil)
	if err != nil {
		return Config{}, errors.Annotate(errors.WithType(err, errors.NotValid), "coercing config")
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := decoder.Decode(coerced); err != nil {
		return Config{}, errors.Annotate(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// ReadConfig reads the YAML file at path, if path is not empty, overlays
// any STOREFRONT_ variables found in environ and returns the resulting
// config.
func ReadConfig(path string, environ []string) (Config, error) {
	attrs := make(map[string]interface{})
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Annotatef(err, "reading config file %q", path)
		}
		if err := yaml.Unmarshal(data, &attrs); err != nil {
			return Config{}, errors.Annotatef(errors.WithType(err, errors.NotValid), "parsing config file %q", path)
		}
		if attrs == nil {
			attrs = make(map[string]interface{})
		}
	}

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, EnvPrefix), "_", "-"))
		if !knownKeys.Contains(key) {
			logger.Debugf("ignoring environment variable %s", name)
			continue
		}
		attrs[key] = value
	}
	return NewConfig(attrs)
}

// Validate checks that the values of the config are usable.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return errors.NotValidf("%s %q", ListenAddress, c.ListenAddress)
	}
	if c.DatabasePath == "" {
		return errors.NotValidf("empty %s", DatabasePath)
	}
	if len(c.JWTSecret) < auth.MinSecretLength {
		return errors.NotValidf("%s shorter than %d bytes", JWTSecret, auth.MinSecretLength)
	}
	for key, ttl := range map[string]time.Duration{
		AccessTokenTTL:       c.AccessTokenTTL,
		VerificationTokenTTL: c.VerificationTokenTTL,
		ResetTokenTTL:        c.ResetTokenTTL,
		ShutdownTimeout:      c.ShutdownTimeout,
	} {
		if ttl <= 0 {
			return errors.NotValidf("non-positive %s", key)
		}
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NotValidf("%s %q", FrontendURL, c.FrontendURL)
	}
	if c.MailFrom == "" {
		return errors.NotValidf("empty %s", MailFrom)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return errors.NotValidf("%s %d", SMTPPort, c.SMTPPort)
	}
	if c.MailRateLimit < 1 {
		return errors.NotValidf("non-positive %s", MailRateLimit)
	}
	if _, err := loggo.ParseConfigString(c.LoggingConfig); err != nil {
		return errors.Annotate(errors.WithType(err, errors.NotValid), LoggingConfig)
	}
	if c.LogFileMaxSize < 1 {
		return errors.NotValidf("non-positive %s", LogFileMaxSize)
	}
	if c.LogFileMaxBackups < 0 {
		return errors.NotValidf("negative %s", LogFileMaxBackups)
	}
	return nil
}

// Attrs returns the config as a map keyed by config key.
func (c Config) Attrs() (map[string]interface{}, error) {
	attrs := make(map[string]interface{})
	if err := mapstructure.Decode(c, &attrs); err != nil {
		return nil, errors.Trace(err)
	}
	return attrs, nil
}
