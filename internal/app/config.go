package app

import (
	"net"
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (GOODS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (GOODS_DATABASE_URL, DATABASE_URL or DB_*)" flag:"database-url"`
	Migrate      bool   `default:"true" usage:"Apply the schema on startup"`
	MaxBodyBytes int64  `default:"10485760" usage:"Maximum request body size in bytes" flag:"max-body-bytes"`
	Images       ImagesConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ImagesConfig controls where product images live on disk.
type ImagesConfig struct {
	Dir              string `default:"image" usage:"Directory for uploaded product images"`
	SniffContentType bool   `default:"false" usage:"Serve images with a content type derived from the extension instead of image/png" flag:"images-sniff"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
// Max of zero disables it.
type RateLimitConfig struct {
	Max    int           `default:"0"  usage:"Max requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	Methods          []string `usage:"Allowed methods, defaults to the storefront set"`
	Headers          []string `usage:"Allowed request headers, defaults to Origin, Content-Type, X-Auth-Token"`
	AllowCredentials bool     `default:"true" usage:"Send Access-Control-Allow-Credentials" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env (if present), then environment variables, flags and
// YAML config files, and finally applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GOODS",
		Files:     []string{"config.yaml", "/etc/goods/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GOODS_DATABASE_URL, DATABASE_URL or DB_HOST/DB_NAME/DB_USER/DB_PASSWORD")
	}
	return &cfg, nil
}

// applyPlatformDefaults fills gaps from conventional variables: DATABASE_URL
// and PORT set by hosting platforms, and the DB_* variables the storefront
// deployment already uses.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = urlFromParts(getenv)
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func urlFromParts(getenv func(string) string) string {
	host, name := getenv("DB_HOST"), getenv("DB_NAME")
	if host == "" || name == "" {
		return ""
	}
	if port := getenv("DB_PORT"); port != "" {
		host = net.JoinHostPort(host, port)
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + name}
	if user := getenv("DB_USER"); user != "" {
		if pass := getenv("DB_PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}
