package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Stripe    StripeConfig    `yaml:"stripe" envconfig:"STRIPE"`
	Firestore FirestoreConfig `yaml:"firestore" envconfig:"FIRESTORE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	// AllowedOrigins applies to the public verify endpoint. The browser
	// extension calls it from an extension origin, so the default is
	// wildcard; tighten to the extension ID in production.
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"*"`
	EnableCORS     bool     `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/licensing.log"`
}

// StripeConfig contains payment-provider configuration. The webhook
// secret authenticates inbound events; an empty secret means the
// webhook endpoint refuses all deliveries.
type StripeConfig struct {
	WebhookSecret string `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	// MaxBodyBytes caps the webhook request body. Stripe payloads are
	// small; anything past this is rejected before verification.
	MaxBodyBytes int64 `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// FirestoreConfig identifies the document store holding license records.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id" envconfig:"PROJECT_ID"`
	Collection      string `yaml:"collection" envconfig:"COLLECTION" default:"licenses"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	// Emulator selects the in-memory store instead of Firestore. Used
	// for local development and tests.
	Emulator bool `yaml:"emulator" envconfig:"EMULATOR" default:"false"`
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFromFile(configFilePath())
}

// LoadFromFile behaves like Load but reads the given YAML file.
// Precedence is environment over file over tag defaults: envconfig
// fills defaults for every unset variable, so file values are captured
// separately and applied afterwards wherever no env var is present.
func LoadFromFile(configFile string) (*Config, error) {
	var file fileValues
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("PRCL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	file.apply(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// fileValues mirrors Config with pointer fields so the loader can tell
// "not in the file" apart from a zero value.
type fileValues struct {
	Server struct {
		Port            *int           `yaml:"port"`
		ReadTimeout     *time.Duration `yaml:"read_timeout"`
		WriteTimeout    *time.Duration `yaml:"write_timeout"`
		IdleTimeout     *time.Duration `yaml:"idle_timeout"`
		MaxHeaderBytes  *int           `yaml:"max_header_bytes"`
		ShutdownTimeout *time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Security struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
		EnableCORS     *bool    `yaml:"enable_cors"`
	} `yaml:"security"`
	Logging struct {
		Level    *string `yaml:"level"`
		Format   *string `yaml:"format"`
		Output   *string `yaml:"output"`
		FilePath *string `yaml:"file_path"`
	} `yaml:"logging"`
	Stripe struct {
		WebhookSecret *string `yaml:"webhook_secret"`
		MaxBodyBytes  *int64  `yaml:"max_body_bytes"`
	} `yaml:"stripe"`
	Firestore struct {
		ProjectID       *string `yaml:"project_id"`
		Collection      *string `yaml:"collection"`
		CredentialsFile *string `yaml:"credentials_file"`
		Emulator        *bool   `yaml:"emulator"`
	} `yaml:"firestore"`
}

// apply copies file-set values into cfg, except where the matching
// environment variable is present (env always wins).
func (f *fileValues) apply(cfg *Config) {
	fromFile(&cfg.Server.Port, f.Server.Port, "SERVER_PORT")
	fromFile(&cfg.Server.ReadTimeout, f.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	fromFile(&cfg.Server.WriteTimeout, f.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	fromFile(&cfg.Server.IdleTimeout, f.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	fromFile(&cfg.Server.MaxHeaderBytes, f.Server.MaxHeaderBytes, "SERVER_MAX_HEADER_BYTES")
	fromFile(&cfg.Server.ShutdownTimeout, f.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")

	if len(f.Security.AllowedOrigins) > 0 && !envSet("SECURITY_ALLOWED_ORIGINS") {
		cfg.Security.AllowedOrigins = f.Security.AllowedOrigins
	}
	fromFile(&cfg.Security.EnableCORS, f.Security.EnableCORS, "SECURITY_ENABLE_CORS")

	fromFile(&cfg.Logging.Level, f.Logging.Level, "LOGGING_LEVEL")
	fromFile(&cfg.Logging.Format, f.Logging.Format, "LOGGING_FORMAT")
	fromFile(&cfg.Logging.Output, f.Logging.Output, "LOGGING_OUTPUT")
	fromFile(&cfg.Logging.FilePath, f.Logging.FilePath, "LOGGING_FILE_PATH")

	fromFile(&cfg.Stripe.WebhookSecret, f.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	fromFile(&cfg.Stripe.MaxBodyBytes, f.Stripe.MaxBodyBytes, "STRIPE_MAX_BODY_BYTES")

	fromFile(&cfg.Firestore.ProjectID, f.Firestore.ProjectID, "FIRESTORE_PROJECT_ID")
	fromFile(&cfg.Firestore.Collection, f.Firestore.Collection, "FIRESTORE_COLLECTION")
	fromFile(&cfg.Firestore.CredentialsFile, f.Firestore.CredentialsFile, "FIRESTORE_CREDENTIALS_FILE")
	fromFile(&cfg.Firestore.Emulator, f.Firestore.Emulator, "FIRESTORE_EMULATOR")
}

func fromFile[T any](dst *T, file *T, envVar string) {
	if file == nil || envSet(envVar) {
		return
	}
	*dst = *file
}

func envSet(name string) bool {
	_, ok := os.LookupEnv("PRCL_" + name)
	return ok
}

func configFilePath() string {
	if path := os.Getenv("PRCL_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Firestore.Collection == "" {
		return fmt.Errorf("firestore collection must not be empty")
	}
	if !c.Firestore.Emulator && c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore project_id is required")
	}

	return nil
}

// GetServerAddress returns the server listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
