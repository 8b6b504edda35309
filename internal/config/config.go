package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort      string        `yaml:"port"`
	DatabaseType    string        `yaml:"database_type"`
	DatabasePath    string        `yaml:"database_path"`
	DatabaseURL     string        `yaml:"database_url"`
	SessionDuration time.Duration `yaml:"session_duration"`
	StaticFilesPath string        `yaml:"static_path"`
	TemplatesPath   string        `yaml:"templates_path"`
	MigrationsPath  string        `yaml:"migrations_path"`
	CSRFSecret      string        `yaml:"csrf_secret"`
	AppBaseURL      string        `yaml:"app_base_url"`
	Debug           bool          `yaml:"debug"`

	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`

	OAuthRedirectBaseURL string `yaml:"oauth_redirect_base_url"`
	GoogleClientID       string `yaml:"google_client_id"`
	GoogleClientSecret   string `yaml:"google_client_secret"`
	FacebookClientID     string `yaml:"facebook_client_id"`
	FacebookClientSecret string `yaml:"facebook_client_secret"`
	AppleClientID        string `yaml:"apple_client_id"`
	AppleClientSecret    string `yaml:"apple_client_secret"`

	AWSRegion    string `yaml:"aws_region"`
	SESFromEmail string `yaml:"ses_from_email"`
	SESFromName  string `yaml:"ses_from_name"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerPort:      "8080",
		DatabaseType:    "sqlite",
		DatabasePath:    "./mathdrill.db",
		SessionDuration: 24 * time.Hour,
		StaticFilesPath: "./static",
		TemplatesPath:   "./internal/templates",
		CSRFSecret:      "change-me-in-production",
		AppBaseURL:      "http://localhost:8080",
		LoginRateLimit:  10,
		LoginRateWindow: time.Minute,
		AWSRegion:       "us-east-1",
		SESFromName:     "MathDrill",
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// applies environment variable overrides
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.DatabaseType = getEnv("DATABASE_TYPE", c.DatabaseType)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SessionDuration = getEnvDuration("SESSION_DURATION", c.SessionDuration)
	c.StaticFilesPath = getEnv("STATIC_PATH", c.StaticFilesPath)
	c.TemplatesPath = getEnv("TEMPLATES_PATH", c.TemplatesPath)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
	c.CSRFSecret = getEnv("CSRF_SECRET", c.CSRFSecret)
	c.AppBaseURL = getEnv("APP_BASE_URL", c.AppBaseURL)
	c.Debug = getEnvBool("DEBUG", c.Debug)

	c.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", c.LoginRateLimit)
	c.LoginRateWindow = getEnvDuration("LOGIN_RATE_WINDOW", c.LoginRateWindow)

	c.OAuthRedirectBaseURL = getEnv("OAUTH_REDIRECT_BASE_URL", c.OAuthRedirectBaseURL)
	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.FacebookClientID = getEnv("FACEBOOK_CLIENT_ID", c.FacebookClientID)
	c.FacebookClientSecret = getEnv("FACEBOOK_CLIENT_SECRET", c.FacebookClientSecret)
	c.AppleClientID = getEnv("APPLE_CLIENT_ID", c.AppleClientID)
	c.AppleClientSecret = getEnv("APPLE_CLIENT_SECRET", c.AppleClientSecret)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.SESFromEmail = getEnv("SES_FROM_EMAIL", c.SESFromEmail)
	c.SESFromName = getEnv("SES_FROM_NAME", c.SESFromName)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
