// Package config loads runtime settings from the environment and sets up
// logging.
//
// Values come from ESTIMATOR_* variables, optionally read from a .env file
// in the working directory. Command-line flags override them in cmd/.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Prefix is the environment variable prefix.
const Prefix = "estimator"

// Config holds process-level settings. The server listens on loopback by
// default and an empty CORSOrigins means api.DefaultOrigins. User
// preferences such as default markup live in the database, see package
// settings.
type Config struct {
	DBPath      string   `envconfig:"DB_PATH" default:"estimator.db"`
	Addr        string   `envconfig:"ADDR" default:"127.0.0.1:8080"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"text"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// Load reads .env files (when present) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !isMissingFile(err) {
		return Config{}, errors.Wrap(err, "read .env")
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	return cfg, nil
}

func isMissingFile(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && os.IsNotExist(pathErr)
}

// SetupLogging configures the standard logrus logger. format is "text" or
// "json".
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("log format %q: must be text or json", format)
	}
	return nil
}
