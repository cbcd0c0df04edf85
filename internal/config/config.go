package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:30601"
	DefaultDBFileName     = ".seedshare.db"
	DefaultUploadDirName  = "uploads"
	DefaultLogLevel       = "debug"
	DefaultFrontendOrigin = "http://localhost:80"

	DefaultMaxFileBytes       int64 = 10 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024
	DefaultRetention                = 24 * time.Hour

	DefaultRateLimitMaxRequests = 40
	DefaultRateLimitWindow      = 60 * time.Second

	DefaultSweepInterval = 24 * time.Hour

	DefaultCacheSize = 1024
	DefaultCacheTTL  = 5 * time.Minute

	configFileName  = ".seedshare.toml"
	dotEnvFileName  = ".env"
	configDirEnvKey = "SEEDSHARE_CONFIG_DIR"
	envPrefix       = "SEEDSHARE_"
)

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxFileBytes       int64         `toml:"max_file_bytes"`
	MultipartMaxMemory int64         `toml:"multipart_max_memory"`
	Retention          time.Duration `toml:"retention"`
}

// RateLimitConfig configures the per-client request window.
type RateLimitConfig struct {
	MaxRequests int           `toml:"max_requests"`
	Window      time.Duration `toml:"window"`
}

// ExpiryConfig configures the background expiry sweep.
type ExpiryConfig struct {
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// CacheConfig sizes the record lookup cache. A size of zero disables it.
type CacheConfig struct {
	Size int           `toml:"size"`
	TTL  time.Duration `toml:"ttl"`
}

// Config defines runtime configuration for seedshare.
type Config struct {
	APIURL            string          `toml:"api_url"`
	ListenAddr        string          `toml:"listen_addr"`
	PublicURL         string          `toml:"public_url"`
	DBDSN             string          `toml:"db_dsn"`
	UploadDir         string          `toml:"upload_dir"`
	LogLevel          string          `toml:"log_level"`
	FrontendOrigin    string          `toml:"frontend_origin"`
	AdminToken        string          `toml:"admin_token"`
	TrustProxyHeaders bool            `toml:"trust_proxy_headers"`
	Upload            UploadConfig    `toml:"upload"`
	RateLimit         RateLimitConfig `toml:"rate_limit"`
	Expiry            ExpiryConfig    `toml:"expiry"`
	Cache             CacheConfig     `toml:"cache"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		LogLevel:       DefaultLogLevel,
		FrontendOrigin: DefaultFrontendOrigin,
		Upload: UploadConfig{
			MaxFileBytes:       DefaultMaxFileBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
			Retention:          DefaultRetention,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: DefaultRateLimitMaxRequests,
			Window:      DefaultRateLimitWindow,
		},
		Expiry: ExpiryConfig{
			SweepInterval: DefaultSweepInterval,
		},
		Cache: CacheConfig{
			Size: DefaultCacheSize,
			TTL:  DefaultCacheTTL,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv populates the process environment from .env in the working
// directory. Variables already set win.
func loadDotEnv() error {
	err := godotenv.Load(dotEnvFileName)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", dotEnvFileName, err)
}

var allowedKeys = []string{
	"api_url",
	"listen_addr",
	"public_url",
	"db_dsn",
	"upload_dir",
	"log_level",
	"frontend_origin",
	"admin_token",
	"trust_proxy_headers",
	"upload.max_file_bytes",
	"upload.multipart_max_memory",
	"upload.retention",
	"rate_limit.max_requests",
	"rate_limit.window",
	"expiry.sweep_interval",
	"cache.size",
	"cache.ttl",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "public_url":
		return c.PublicURL, nil
	case "db_dsn":
		return c.DBDSN, nil
	case "upload_dir":
		return c.UploadDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "frontend_origin":
		return c.FrontendOrigin, nil
	case "admin_token":
		return c.AdminToken, nil
	case "trust_proxy_headers":
		return strconv.FormatBool(c.TrustProxyHeaders), nil
	case "upload.max_file_bytes":
		return strconv.FormatInt(c.Upload.MaxFileBytes, 10), nil
	case "upload.multipart_max_memory":
		return strconv.FormatInt(c.Upload.MultipartMaxMemory, 10), nil
	case "upload.retention":
		return c.Upload.Retention.String(), nil
	case "rate_limit.max_requests":
		return strconv.Itoa(c.RateLimit.MaxRequests), nil
	case "rate_limit.window":
		return c.RateLimit.Window.String(), nil
	case "expiry.sweep_interval":
		return c.Expiry.SweepInterval.String(), nil
	case "cache.size":
		return strconv.Itoa(c.Cache.Size), nil
	case "cache.ttl":
		return c.Cache.TTL.String(), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Path returns the config file path: SEEDSHARE_CONFIG_DIR/.seedshare.toml when
// set, otherwise ~/.seedshare.toml.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads .env, the config file, and SEEDSHARE_* environment overrides, in
// that order of increasing precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	for _, key := range allowedKeys {
		envKey := envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		raw, ok := os.LookupEnv(envKey)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := c.set(key, raw); err != nil {
			return fmt.Errorf("%s: %w", envKey, err)
		}
	}
	return nil
}

func (c *Config) set(key, raw string) error {
	value, err := parseSetValue(key, raw)
	if err != nil {
		return err
	}
	switch key {
	case "api_url":
		c.APIURL = value.(string)
	case "listen_addr":
		c.ListenAddr = value.(string)
	case "public_url":
		c.PublicURL = value.(string)
	case "db_dsn":
		c.DBDSN = value.(string)
	case "upload_dir":
		c.UploadDir = value.(string)
	case "log_level":
		c.LogLevel = value.(string)
	case "frontend_origin":
		c.FrontendOrigin = value.(string)
	case "admin_token":
		c.AdminToken = value.(string)
	case "trust_proxy_headers":
		c.TrustProxyHeaders = value.(bool)
	case "upload.max_file_bytes":
		c.Upload.MaxFileBytes = value.(int64)
	case "upload.multipart_max_memory":
		c.Upload.MultipartMaxMemory = value.(int64)
	case "upload.retention":
		c.Upload.Retention = mustDuration(value)
	case "rate_limit.max_requests":
		c.RateLimit.MaxRequests = int(value.(int64))
	case "rate_limit.window":
		c.RateLimit.Window = mustDuration(value)
	case "expiry.sweep_interval":
		c.Expiry.SweepInterval = mustDuration(value)
	case "cache.size":
		c.Cache.Size = int(value.(int64))
	case "cache.ttl":
		c.Cache.TTL = mustDuration(value)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// parseSetValue validates value for key. Durations are returned as their
// string form so the TOML file stays readable.
func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "upload.max_file_bytes", "upload.multipart_max_memory", "rate_limit.max_requests":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "cache.size":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "upload.retention", "rate_limit.window", "expiry.sweep_interval", "cache.ttl":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 30s or 24h", key)
		}
		return d.String(), nil
	case "trust_proxy_headers":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "log_level":
		if _, ok := validLogLevels[strings.ToLower(value)]; !ok {
			return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

var validLogLevels = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

func mustDuration(value any) time.Duration {
	d, _ := time.ParseDuration(value.(string))
	return d
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalize() {
	defaults := Default()
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = defaults.APIURL
	}
	if strings.TrimSpace(c.PublicURL) == "" {
		c.PublicURL = c.APIURL
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if c.DBDSN == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.DBDSN = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if c.UploadDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.UploadDir = filepath.Join(cwd, DefaultUploadDirName)
		}
	}
	if c.Upload.MaxFileBytes <= 0 {
		c.Upload.MaxFileBytes = defaults.Upload.MaxFileBytes
	}
	if c.Upload.MultipartMaxMemory <= 0 {
		c.Upload.MultipartMaxMemory = defaults.Upload.MultipartMaxMemory
	}
	if c.Upload.Retention <= 0 {
		c.Upload.Retention = defaults.Upload.Retention
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = defaults.RateLimit.MaxRequests
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = defaults.RateLimit.Window
	}
	if c.Expiry.SweepInterval <= 0 {
		c.Expiry.SweepInterval = defaults.Expiry.SweepInterval
	}
	if c.Cache.Size < 0 {
		c.Cache.Size = 0
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = defaults.Cache.TTL
	}
}
