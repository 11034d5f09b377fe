// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/gesture"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "SIGNBRIDGE_"

// Config holds the service settings.
type Config struct {
	HTTPAddr  string
	DataDir   string
	StaticDir string

	ModelPath    string
	Backend      classifier.Kind
	WindowSize   int
	Labels       []string
	RequireModel bool

	ExtractorScript string
	ExtractorPython string

	RateLimitPerMin int

	// SessionIdle and MaxSessions bound the per-stream recognizer table.
	SessionIdle time.Duration
	MaxSessions int

	CameraID  int
	CameraFPS int
}

// DefaultDataDir returns ~/.signbridge, or .signbridge when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signbridge"
	}
	return filepath.Join(home, ".signbridge")
}

// Load reads an optional .env file and then the SIGNBRIDGE_* variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	dataDir := getEnv("DATA_DIR", DefaultDataDir())

	return &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DataDir:         dataDir,
		StaticDir:       getEnv("STATIC_DIR", ""),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(dataDir, "models", "gesture_weights.json")),
		Backend:         classifier.Kind(strings.ToLower(getEnv("BACKEND", ""))),
		WindowSize:      getEnvInt("WINDOW_SIZE", 0),
		Labels:          getEnvList("LABELS"),
		RequireModel:    getEnvBool("REQUIRE_MODEL", false),
		ExtractorScript: getEnv("EXTRACTOR_SCRIPT", ""),
		ExtractorPython: getEnv("EXTRACTOR_PYTHON", ""),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 600),
		SessionIdle:     getEnvDuration("SESSION_IDLE", gesture.DefaultSessionIdle),
		MaxSessions:     getEnvInt("MAX_SESSIONS", gesture.DefaultMaxSessions),
		CameraID:        getEnvInt("CAMERA_ID", -1),
		CameraFPS:       getEnvInt("CAMERA_FPS", 15),
	}
}

// DBPath returns the sqlite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "signbridge.db")
}

// CameraEnabled reports whether a local camera should be opened.
func (c *Config) CameraEnabled() bool {
	return c.CameraID >= 0
}

// Validate checks the settings for values that cannot work.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http address is empty")
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("window size %d is negative", c.WindowSize)
	}
	switch c.Backend {
	case "", classifier.KindSequence, classifier.KindAggregate:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, classifier.KindSequence, classifier.KindAggregate)
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("rate limit %d is negative", c.RateLimitPerMin)
	}
	if c.SessionIdle < 0 {
		return fmt.Errorf("session idle %v is negative", c.SessionIdle)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions %d is negative", c.MaxSessions)
	}
	if c.CameraEnabled() && c.CameraFPS <= 0 {
		return fmt.Errorf("camera fps must be positive, got %d", c.CameraFPS)
	}
	return nil
}

// ModelOptions returns the classifier options described by the config.
func (c *Config) ModelOptions() classifier.Options {
	return classifier.Options{
		Path:   c.ModelPath,
		Kind:   c.Backend,
		Window: c.WindowSize,
		Labels: c.Labels,
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
