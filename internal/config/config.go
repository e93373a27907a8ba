package config

import (
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	EnvDir      = "SQLVIEW_DIR"
	EnvLogFile  = "SQLVIEW_LOG_FILE"
	EnvLogLevel = "SQLVIEW_LOG_LEVEL"

	defaultDir      = "."
	defaultLogLevel = "info"
)

// Config holds the settings shared by all commands.
type Config struct {
	// Dir is searched for *.db files by the file picker.
	Dir      string
	LogFile  string
	LogLevel string
}

// Load reads .env files (if any) and the environment, then applies flags
// that were set explicitly on the command line.
func Load(flags *pflag.FlagSet, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		// missing .env is fine
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, errors.Wrap(err, "load env file")
	}

	cfg := &Config{
		Dir:      getenv(EnvDir, defaultDir),
		LogFile:  os.Getenv(EnvLogFile),
		LogLevel: getenv(EnvLogLevel, defaultLogLevel),
	}
	if flags != nil {
		override(flags, "dir", &cfg.Dir)
		override(flags, "log-file", &cfg.LogFile)
		override(flags, "log-level", &cfg.LogLevel)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, errors.Wrapf(err, "invalid log level")
	}
	return cfg, nil
}

// BindFlags registers the flags Load understands.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("dir", defaultDir, "directory to search for .db files (env "+EnvDir+")")
	flags.String("log-file", "", "write logs to this file (env "+EnvLogFile+")")
	flags.String("log-level", defaultLogLevel, "log level: debug, info, warn, error (env "+EnvLogLevel+")")
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func override(flags *pflag.FlagSet, name string, dst *string) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	*dst = f.Value.String()
}

// NewLogger builds the application logger. Without a log file, output goes
// to fallback; the TUI passes io.Discard since it owns the terminal. The
// returned closer releases the log file.
func (c *Config) NewLogger(fallback io.Writer) (*log.Logger, io.Closer, error) {
	logger := log.New()
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid log level")
	}
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	if c.LogFile == "" {
		logger.SetOutput(fallback)
		return logger, nopCloser{}, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log file %s", c.LogFile)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
