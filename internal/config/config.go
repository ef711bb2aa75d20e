// Package config loads process configuration from the environment and an
// optional YAML file. The JWT signing secret has no default: startup fails
// when it is missing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// ErrConfiguration wraps every invalid-configuration failure.
var ErrConfiguration = errors.New("configuration error")

// Config holds runtime settings for the API server.
type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"prod"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	HTTP     HTTPServer `yaml:"http"`
	Storage  Storage    `yaml:"storage"`
	Redis    Redis      `yaml:"redis"`
	JWT      JWT        `yaml:"jwt"`
	Password Password   `yaml:"password"`
	Login    Login      `yaml:"login"`
}

// HTTPServer configures the echo listener.
type HTTPServer struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// Storage selects and configures the credential store.
type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	DBURL  string `yaml:"db_url" env:"DB_URL"`
}

// Redis backs the login attempt throttle.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_URL" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// JWT configures the token issuer.
type JWT struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"168h"`
	Issuer string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"lifeline-auth"`
}

// Password is the argon2id work factor.
type Password struct {
	Memory      uint32 `yaml:"memory_kib" env:"ARGON2_MEMORY_KIB" env-default:"65536"`
	Iterations  uint32 `yaml:"iterations" env:"ARGON2_ITERATIONS" env-default:"3"`
	Parallelism uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM" env-default:"2"`
}

// Login configures the failed-login throttle.
type Login struct {
	MaxAttempts int           `yaml:"max_attempts" env:"LOGIN_MAX_ATTEMPTS" env-default:"5"`
	Window      time.Duration `yaml:"window" env:"LOGIN_WINDOW" env-default:"15m"`
}

// HashParams converts the password section into hasher parameters.
func (p Password) HashParams() security.HashParams {
	params := security.DefaultParams
	params.Memory = p.Memory
	params.Iterations = p.Iterations
	params.Parallelism = p.Parallelism
	return params
}

// Load reads CONFIG_PATH (when set) and then the environment, and validates the result.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file %s: %w", ErrConfiguration, path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%w: cannot read config: %w", ErrConfiguration, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("%w: %w", ErrConfiguration, security.ErrMissingSecret)
	}
	if len(c.JWT.Secret) < security.MinSecretLength {
		return fmt.Errorf("%w: %w", ErrConfiguration, security.ErrWeakSecret)
	}
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Storage.DBURL == "" {
			return fmt.Errorf("%w: DB_URL is required for the postgres driver", ErrConfiguration)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrConfiguration, c.Storage.Driver)
	}
	if c.Password.Memory == 0 || c.Password.Iterations == 0 || c.Password.Parallelism == 0 {
		return fmt.Errorf("%w: argon2 parameters must be positive", ErrConfiguration)
	}
	if c.Login.MaxAttempts < 0 {
		return fmt.Errorf("%w: LOGIN_MAX_ATTEMPTS must not be negative", ErrConfiguration)
	}
	return nil
}

// String renders the config for startup logs with the secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"env=%s storage=%s redis=%s jwt_ttl=%s jwt_issuer=%s jwt_secret=%s login_max_attempts=%d login_window=%s",
		c.Env, c.Storage.Driver, c.Redis.Addr, c.JWT.TTL, c.JWT.Issuer, mask(c.JWT.Secret), c.Login.MaxAttempts, c.Login.Window,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
