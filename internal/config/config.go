// Package config provides configuration management for the lesson video service.
// Configuration is layered: built-in defaults, then an optional YAML file, then
// environment variables (a .env file in the working directory is loaded first).
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

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort      = 8080
	DefaultLogLevel  = "info"
	DefaultDataDir   = "data"
	DefaultPublicDir = "public"
	DefaultFolder    = "lesson-videos"

	// VideosSubdir is the fixed directory under the public root holding local uploads.
	VideosSubdir = "videos"

	// Environment variable names
	EnvPort       = "VIDEO_PORT"
	EnvLogLevel   = "VIDEO_LOG_LEVEL"
	EnvDataDir    = "VIDEO_DATA_DIR"
	EnvPublicDir  = "VIDEO_PUBLIC_DIR"
	EnvConfigFile = "VIDEO_CONFIG_FILE"
	EnvSeedFile   = "VIDEO_SEED_FILE"
	EnvStorage    = "VIDEO_STORAGE"
	EnvJWTSecret  = "VIDEO_JWT_SECRET"
	EnvCORS       = "VIDEO_CORS_ORIGINS"
	EnvRelayHosts = "VIDEO_RELAY_REDIRECT_HOSTS"
	EnvOTel       = "OTEL_ENABLED"

	EnvCloudinaryCloudName = "CLOUDINARY_CLOUD_NAME"
	EnvCloudinaryAPIKey    = "CLOUDINARY_API_KEY"
	EnvCloudinaryAPISecret = "CLOUDINARY_API_SECRET"
	EnvCloudinaryFolder    = "CLOUDINARY_FOLDER"

	EnvAWSRegion          = "AWS_REGION"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvAWSBucket          = "AWS_S3_BUCKET"

	EnvGCSBucket        = "GCS_BUCKET"
	EnvGCSPublicBaseURL = "GCS_PUBLIC_BASE_URL"
	EnvGCSEmulatorHost  = "STORAGE_EMULATOR_HOST"

	// Database filename
	DBFilename = "video.db"

	DefaultRelayTimeout   = 30 * time.Second
	DefaultUploadTimeout  = 5 * time.Minute
	DefaultMaxUploadBytes = 500 * 1024 * 1024
)

// DefaultRelayRedirectHosts are CDNs that serve byte ranges natively.
var DefaultRelayRedirectHosts = []string{"res.cloudinary.com", "storage.googleapis.com"}

// StorageBackend names the upload destination.
type StorageBackend string

const (
	StorageLocal      StorageBackend = "local"
	StorageCloudinary StorageBackend = "cloudinary"
	StorageS3         StorageBackend = "s3"
	StorageGCS        StorageBackend = "gcs"
)

// ParseStorageBackend validates a VIDEO_STORAGE value.
func ParseStorageBackend(s string) (StorageBackend, error) {
	switch b := StorageBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return StorageLocal, nil
	case StorageLocal, StorageCloudinary, StorageS3, StorageGCS:
		return b, nil
	default:
		return "", fmt.Errorf("invalid %s=%q (allowed: local, cloudinary, s3, gcs)", EnvStorage, s)
	}
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

// Complete reports whether all credentials are present.
func (c CloudinaryConfig) Complete() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type S3Config struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
}

type GCSConfig struct {
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	EmulatorHost  string `yaml:"emulator_host"`
}

// StorageConfig is handed to the storage package to build exactly one backend.
type StorageConfig struct {
	Backend        StorageBackend   `yaml:"backend"`
	VideosDir      string           `yaml:"-"`
	MaxUploadBytes int64            `yaml:"max_upload_bytes"`
	UploadTimeout  time.Duration    `yaml:"upload_timeout"`
	Cloudinary     CloudinaryConfig `yaml:"cloudinary"`
	S3             S3Config         `yaml:"s3"`
	GCS            GCSConfig        `yaml:"gcs"`
}

// RelayConfig drives the external relay.
type RelayConfig struct {
	RedirectHosts []string      `yaml:"redirect_hosts"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	PublicDir() string
	VideosDir() string
	SeedFile() string
	JWTSecret() string
	CORSOrigins() []string
	TracingEnabled() bool
	Storage() StorageConfig
	Relay() RelayConfig
}

type fileConfig struct {
	Port        int           `yaml:"port"`
	LogLevel    string        `yaml:"log_level"`
	DataDir     string        `yaml:"data_dir"`
	PublicDir   string        `yaml:"public_dir"`
	SeedFile    string        `yaml:"seed_file"`
	JWTSecret   string        `yaml:"jwt_secret"`
	CORSOrigins []string      `yaml:"cors_origins"`
	Tracing     bool          `yaml:"tracing"`
	Storage     StorageConfig `yaml:"storage"`
	Relay       RelayConfig   `yaml:"relay"`
}

// EnvConfig is the resolved, immutable configuration.
type EnvConfig struct {
	c fileConfig
}

// New creates a new EnvConfig with defaults, optional YAML file and environment variable overrides
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	fc := fileConfig{
		Port:        DefaultPort,
		LogLevel:    DefaultLogLevel,
		DataDir:     DefaultDataDir,
		PublicDir:   DefaultPublicDir,
		CORSOrigins: []string{"*"},
		Storage: StorageConfig{
			Backend:        StorageLocal,
			MaxUploadBytes: DefaultMaxUploadBytes,
			UploadTimeout:  DefaultUploadTimeout,
			Cloudinary:     CloudinaryConfig{Folder: DefaultFolder},
		},
		Relay: RelayConfig{
			RedirectHosts: DefaultRelayRedirectHosts,
			Timeout:       DefaultRelayTimeout,
		},
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", EnvConfigFile, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&fc); err != nil {
		return nil, err
	}

	backend, err := ParseStorageBackend(string(fc.Storage.Backend))
	if err != nil {
		return nil, err
	}
	fc.Storage.Backend = backend
	fc.Storage.VideosDir = filepath.Join(fc.PublicDir, VideosSubdir)

	if fc.Port < 1 || fc.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}
	if backend == StorageCloudinary && !fc.Storage.Cloudinary.Complete() {
		return nil, fmt.Errorf("%s=cloudinary requires %s, %s and %s",
			EnvStorage, EnvCloudinaryCloudName, EnvCloudinaryAPIKey, EnvCloudinaryAPISecret)
	}
	if backend == StorageGCS && fc.Storage.GCS.Bucket == "" {
		return nil, fmt.Errorf("%s=gcs requires %s", EnvStorage, EnvGCSBucket)
	}
	if fc.Storage.MaxUploadBytes <= 0 {
		fc.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if fc.Storage.UploadTimeout <= 0 {
		fc.Storage.UploadTimeout = DefaultUploadTimeout
	}
	if fc.Relay.Timeout <= 0 {
		fc.Relay.Timeout = DefaultRelayTimeout
	}

	return &EnvConfig{c: fc}, nil
}

func applyEnv(fc *fileConfig) error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		fc.Port = port
	}

	setString(&fc.LogLevel, EnvLogLevel)
	setString(&fc.DataDir, EnvDataDir)
	setString(&fc.PublicDir, EnvPublicDir)
	setString(&fc.SeedFile, EnvSeedFile)
	setString(&fc.JWTSecret, EnvJWTSecret)

	if v := os.Getenv(EnvStorage); v != "" {
		fc.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv(EnvCORS); v != "" {
		fc.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(EnvRelayHosts); v != "" {
		fc.Relay.RedirectHosts = splitList(v)
	}
	if v := os.Getenv(EnvOTel); v != "" {
		fc.Tracing = isTruthy(v)
	}

	setString(&fc.Storage.Cloudinary.CloudName, EnvCloudinaryCloudName)
	setString(&fc.Storage.Cloudinary.APIKey, EnvCloudinaryAPIKey)
	setString(&fc.Storage.Cloudinary.APISecret, EnvCloudinaryAPISecret)
	setString(&fc.Storage.Cloudinary.Folder, EnvCloudinaryFolder)

	setString(&fc.Storage.S3.Region, EnvAWSRegion)
	setString(&fc.Storage.S3.AccessKeyID, EnvAWSAccessKeyID)
	setString(&fc.Storage.S3.SecretAccessKey, EnvAWSSecretAccessKey)
	setString(&fc.Storage.S3.Bucket, EnvAWSBucket)

	setString(&fc.Storage.GCS.Bucket, EnvGCSBucket)
	setString(&fc.Storage.GCS.PublicBaseURL, EnvGCSPublicBaseURL)
	setString(&fc.Storage.GCS.EmulatorHost, EnvGCSEmulatorHost)
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.c.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.c.LogLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.c.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.c.DataDir, DBFilename)
}

// PublicDir returns the public asset root
func (c *EnvConfig) PublicDir() string {
	return c.c.PublicDir
}

// VideosDir returns the sandbox root for local videos
func (c *EnvConfig) VideosDir() string {
	return c.c.Storage.VideosDir
}

func (c *EnvConfig) SeedFile() string {
	return c.c.SeedFile
}

func (c *EnvConfig) JWTSecret() string {
	return c.c.JWTSecret
}

func (c *EnvConfig) CORSOrigins() []string {
	return append([]string(nil), c.c.CORSOrigins...)
}

func (c *EnvConfig) TracingEnabled() bool {
	return c.c.Tracing
}

// Storage returns a copy of the storage settings.
func (c *EnvConfig) Storage() StorageConfig {
	return c.c.Storage
}

// Relay returns a copy of the relay settings.
func (c *EnvConfig) Relay() RelayConfig {
	r := c.c.Relay
	r.RedirectHosts = append([]string(nil), r.RedirectHosts...)
	return r
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
