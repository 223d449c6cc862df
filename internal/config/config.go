// Package config loads runtime settings: built-in defaults, then a .env file
// and the process environment, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `validate:"required"`
	BaseURL     string `validate:"required,url"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=text json"`
	BehindProxy bool

	DBDriver string `validate:"oneof=postgres sqlite"`
	DBDSN    string `validate:"required"`

	BlobDriver  string `validate:"oneof=s3 bolt"`
	BoltPath    string `validate:"required_if=BlobDriver bolt"`
	S3Bucket    string `validate:"required_if=BlobDriver s3"`
	S3Region    string `validate:"required_if=BlobDriver s3"`
	S3Endpoint  string `validate:"omitempty,url"`
	S3Prefix    string `validate:"required_if=BlobDriver s3"`
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool

	JWTSecret string        `validate:"required,min=16"`
	JWTIssuer string        `validate:"required"`
	JWTTTL    time.Duration `validate:"min=1s"`

	TokenCodec string `validate:"oneof=base64 sqids"`

	SMTPHost     string
	SMTPPort     int `validate:"min=0,max=65535"`
	SMTPUsername string
	SMTPPassword string
	MailFrom     string  `validate:"omitempty,email"`
	MailRate     float64 `validate:"gte=0"`
	MailBurst    int     `validate:"min=1"`

	JanitorInterval time.Duration `validate:"min=1s"`
	OrphanGrace     time.Duration `validate:"min=0s"`
	MaxBodyBytes    int64         `validate:"min=1024"`
}

// Defaults returns a configuration suitable for a local run. JWTSecret is
// left empty and must come from JWT_SECRET.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		BaseURL:         "http://localhost:8080",
		LogLevel:        "info",
		LogFormat:       "text",
		DBDriver:        "sqlite",
		DBDSN:           "./pastebox.db",
		BlobDriver:      "bolt",
		BoltPath:        "./pastebox-blobs.db",
		S3Region:        "us-east-1",
		S3Prefix:        "records/",
		JWTIssuer:       "pastebox",
		JWTTTL:          time.Hour,
		TokenCodec:      "base64",
		SMTPPort:        587,
		MailRate:        1,
		MailBurst:       5,
		JanitorInterval: time.Minute,
		OrphanGrace:     time.Hour,
		MaxBodyBytes:    1_048_576,
	}
}

// Load builds the configuration. lookup reads the environment (os.LookupEnv
// in production); values from envFile fill in variables lookup does not know.
// A missing envFile is not an error.
func Load(args []string, lookup func(string) (string, bool), envFile string) (Config, error) {
	cfg := Defaults()

	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok && v != "" {
				return v, true
			}
		}
		v, ok := fileVars[key]
		return v, ok && v != ""
	}

	if err := applyEnv(&cfg, get); err != nil {
		return Config{}, err
	}
	if err := parseFlags(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnvironment is Load wired to the process arguments and environment.
func FromEnvironment() (Config, error) {
	return Load(os.Args[1:], os.LookupEnv, ".env")
}

func applyEnv(cfg *Config, get func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":          &cfg.Addr,
		"BASE_URL":      &cfg.BaseURL,
		"LOG_LEVEL":     &cfg.LogLevel,
		"LOG_FORMAT":    &cfg.LogFormat,
		"DB_DRIVER":     &cfg.DBDriver,
		"DB_DSN":        &cfg.DBDSN,
		"BLOB_DRIVER":   &cfg.BlobDriver,
		"BOLT_PATH":     &cfg.BoltPath,
		"S3_BUCKET":     &cfg.S3Bucket,
		"S3_REGION":     &cfg.S3Region,
		"S3_ENDPOINT":   &cfg.S3Endpoint,
		"S3_PREFIX":     &cfg.S3Prefix,
		"S3_ACCESS_KEY": &cfg.S3AccessKey,
		"S3_SECRET_KEY": &cfg.S3SecretKey,
		"JWT_SECRET":    &cfg.JWTSecret,
		"JWT_ISSUER":    &cfg.JWTIssuer,
		"TOKEN_CODEC":   &cfg.TokenCodec,
		"SMTP_HOST":     &cfg.SMTPHost,
		"SMTP_USERNAME": &cfg.SMTPUsername,
		"SMTP_PASSWORD": &cfg.SMTPPassword,
		"MAIL_FROM":     &cfg.MailFrom,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"JWT_TTL":          &cfg.JWTTTL,
		"JANITOR_INTERVAL": &cfg.JanitorInterval,
		"ORPHAN_GRACE":     &cfg.OrphanGrace,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"BEHIND_PROXY":  &cfg.BehindProxy,
		"S3_PATH_STYLE": &cfg.S3PathStyle,
	}
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	if v, ok := get("SMTP_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.SMTPPort = n
	}
	if v, ok := get("MAIL_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAIL_BURST: %w", err)
		}
		cfg.MailBurst = n
	}
	if v, ok := get("MAIL_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MAIL_RATE: %w", err)
		}
		cfg.MailRate = f
	}
	if v, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return nil
}

func parseFlags(cfg *Config, args []string) error {
	set := flag.NewFlagSet("pastebox", flag.ContinueOnError)
	set.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	set.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "canonical base URL used in links")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	set.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "postgres or sqlite")
	set.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database DSN, or file path for sqlite")
	set.StringVar(&cfg.BlobDriver, "blob-driver", cfg.BlobDriver, "s3 or bolt")
	set.StringVar(&cfg.BoltPath, "bolt-path", cfg.BoltPath, "path to the bolt blob file")
	set.Int64Var(&cfg.MaxBodyBytes, "max-bytes", cfg.MaxBodyBytes, "maximum request body size in bytes")
	set.BoolVar(&cfg.BehindProxy, "behind-proxy", cfg.BehindProxy, "trust proxy headers for client IP and scheme")
	if err := set.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports all failures at once.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return errors.New("invalid config: MAIL_FROM is required when SMTP_HOST is set")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger from LogFormat and LogLevel.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
