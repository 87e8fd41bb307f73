package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/service/expiry"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the bankcards service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key to sign JWT access tokens
	SecretKey string

	// Secret the card number encryption keys are derived from.
	// Changing it makes every stored card number unreadable.
	CardKey string

	// Environment
	Environment string

	// Cron spec of the card expiry sweep, UTC
	ExpirySchedule string

	// Broker to publish events to, events are dropped if empty
	AMQPURL string

	// Operator account created on startup if username is set
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		ExpirySchedule: expiry.DefaultSchedule,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"CARD_KEY":        setString(&c.CardKey),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"EXPIRY_SCHEDULE": setString(&c.ExpirySchedule),
		"AMQP_URL":        setString(&c.AMQPURL),
		"ADMIN_USERNAME":  setString(&c.AdminUsername),
		"ADMIN_PASSWORD":  setString(&c.AdminPassword),
		"ADMIN_EMAIL":     setString(&c.AdminEmail),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("bankcards", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.CardKey, "card-key", "k", c.CardKey, "Secret key to encrypt card numbers")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.ExpirySchedule, "expiry-schedule", c.ExpirySchedule, "Cron spec of card expiry sweep")
	fs.StringVar(&c.AMQPURL, "amqp", c.AMQPURL, "RabbitMQ url to publish events to")

	return fs.Parse(args)
}

// Validate checks options the service can't start without
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.CardKey == "" {
		errs = append(errs, errors.New("card key is required"))
	}
	if c.AdminUsername != "" && (c.AdminPassword == "" || c.AdminEmail == "") {
		errs = append(errs, errors.New("admin password and email are required when admin username is set"))
	}

	return errors.Join(errs...)
}
