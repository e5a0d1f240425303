package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the server reads from the environment
type Config struct {
	DB DBConfig

	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	GinMode    string `envconfig:"GIN_MODE" default:"debug"`
	Timezone   string `envconfig:"TIMEZONE" default:"Africa/Nairobi"`

	// Africa's Talking messaging
	ATUsername     string        `envconfig:"AT_USERNAME" default:"sandbox"`
	ATAPIKey       string        `envconfig:"AT_API_KEY"`
	ATSenderID     string        `envconfig:"AT_SENDER_ID"`
	ATBaseURL      string        `envconfig:"AT_BASE_URL"`
	SMSTimeout     time.Duration `envconfig:"SMS_TIMEOUT" default:"10s"`
	SMSConcurrency int           `envconfig:"SMS_CONCURRENCY" default:"4"`

	JWTSecret          string `envconfig:"JWT_SECRET_KEY"`
	JWTExpirationHours int64  `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
	AdminPhone         string `envconfig:"ADMIN_PHONE"`
	AdminPasswordHash  string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN builds the libpq-style connection string pgx expects
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Load reads optional dotenv files, then the process environment.
// With no files given it reads ".env" from the working directory.
// Variables already set in the environment win over file values.
// The returned bool reports whether every file was found and parsed.
func Load(envFiles ...string) (*Config, bool, error) {
	envLoaded := godotenv.Load(envFiles...) == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, envLoaded, fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.SMSConcurrency < 1 {
		cfg.SMSConcurrency = 1
	}
	return &cfg, envLoaded, nil
}

// Location resolves the configured time zone used to build "available until" timestamps
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AdminEnabled reports whether operator login is configured
func (c *Config) AdminEnabled() bool {
	return c.JWTSecret != "" && c.AdminPhone != "" && c.AdminPasswordHash != ""
}
