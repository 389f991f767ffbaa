package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"

	AuthProviderAnonymous = "anonymous"
	AuthProviderFederated = "federated"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	AppEnv                           string `mapstructure:"APP_ENV"`
	LogLevel                         string `mapstructure:"LOG_LEVEL"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	StoreDriver                      string `mapstructure:"STORE_DRIVER"`
	AuthProvider                     string `mapstructure:"AUTH_PROVIDER"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`
	ParkingSpots                     string `mapstructure:"PARKING_SPOTS"`
	Timezone                         string `mapstructure:"TIMEZONE"`
	ReminderEnabled                  bool   `mapstructure:"REMINDER_ENABLED"`
	ReminderHour                     int    `mapstructure:"REMINDER_HOUR"`
	RabbitMQURL                      string `mapstructure:"RABBITMQ_URL"`
	ReminderQueue                    string `mapstructure:"REMINDER_QUEUE"`
	RedisAddr                        string `mapstructure:"REDIS_ADDR"`
	RedisPassword                    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB                          int    `mapstructure:"REDIS_DB"`
	StreamHeartbeatSeconds           int    `mapstructure:"STREAM_HEARTBEAT_SECONDS"`
}

var keys = []string{
	"PORT", "GIN_MODE", "APP_ENV", "LOG_LEVEL",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"STORE_DRIVER", "AUTH_PROVIDER", "CLIENT_URL", "PARKING_SPOTS", "TIMEZONE",
	"REMINDER_ENABLED", "REMINDER_HOUR", "RABBITMQ_URL", "REMINDER_QUEUE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "STREAM_HEARTBEAT_SECONDS",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverFirestore)
	v.SetDefault("AUTH_PROVIDER", AuthProviderAnonymous)
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("PARKING_SPOTS", "1,2,3,4,5,6")
	v.SetDefault("TIMEZONE", "Europe/Stockholm")
	v.SetDefault("REMINDER_ENABLED", false)
	v.SetDefault("REMINDER_HOUR", 8)
	v.SetDefault("REMINDER_QUEUE", "booking-reminders")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STREAM_HEARTBEAT_SECONDS", 25)
}

// LoadConfig reads configuration from the environment (and any flags already bound to v).
// A nil v uses a fresh viper instance.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	SetDefaults(v)

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when STORE_DRIVER is firestore")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverFirestore, StoreDriverMemory, c.StoreDriver)
	}

	switch c.AuthProvider {
	case AuthProviderAnonymous, AuthProviderFederated:
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", AuthProviderAnonymous, AuthProviderFederated, c.AuthProvider)
	}

	if _, err := c.Spots(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be between 0 and 23, got %d", c.ReminderHour)
	}
	if c.ReminderEnabled && c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required when REMINDER_ENABLED is true")
	}
	if c.StreamHeartbeatSeconds <= 0 {
		return errors.New("STREAM_HEARTBEAT_SECONDS must be positive")
	}
	return nil
}

// Spots parses PARKING_SPOTS into a sorted, de-duplicated list of spot numbers.
func (c *Config) Spots() ([]int, error) {
	seen := make(map[int]bool)
	var spots []int
	for _, part := range strings.Split(c.ParkingSpots, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("PARKING_SPOTS contains invalid spot %q", part)
		}
		if !seen[n] {
			seen[n] = true
			spots = append(spots, n)
		}
	}
	if len(spots) == 0 {
		return nil, errors.New("PARKING_SPOTS must name at least one spot")
	}
	sort.Ints(spots)
	return spots, nil
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StreamHeartbeat is the SSE keep-alive interval.
func (c *Config) StreamHeartbeat() time.Duration {
	return time.Duration(c.StreamHeartbeatSeconds) * time.Second
}

// IsProduction reports whether APP_ENV selects the production profile.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// EnvFile names the dotenv profile for env: .env.production for production, .env otherwise.
func EnvFile(env string) string {
	if env == EnvProduction {
		return ".env.production"
	}
	return ".env"
}

// LoadEnvProfile loads the dotenv profile for env into the process environment.
// Variables already set take precedence. A missing file is not an error.
func LoadEnvProfile(env string) (string, error) {
	file := EnvFile(env)
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file, nil
		}
		return file, fmt.Errorf("load %s: %w", file, err)
	}
	return file, nil
}
