package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CONDUCTOR"

// Configuration keys. Each is also read from CONDUCTOR_<KEY>.
const (
	keyListenAddr        = "listen_addr"
	keyDBPath            = "db_path"
	keyLogLevel          = "log_level"
	keyMaxConcurrent     = "max_concurrent"
	keyApplicationsDir   = "applications_dir"
	keyHistoryCapacity   = "history_capacity"
	keyKeepAliveInterval = "keepalive_interval"
	keyDefaultRunner     = "default_runner"
	keyRunners           = "runners"
	keyWatchCatalog      = "watch_catalog"
)

const (
	defaultListenAddr        = ":3000"
	defaultDBPath            = "conductor.db"
	defaultLogLevel          = "info"
	defaultMaxConcurrent     = 2
	defaultApplicationsDir   = "applications"
	defaultHistoryCapacity   = 1000
	defaultKeepAliveInterval = 15 * time.Second
	defaultRunner            = "playwright"
	defaultRunnerCommand     = "npx playwright test"
)

// Config holds application configuration.
type Config struct {
	ListenAddr        string
	DBPath            string
	LogLevel          slog.Level
	MaxConcurrent     int
	ApplicationsDir   string
	HistoryCapacity   int
	KeepAliveInterval time.Duration
	DefaultRunner     string
	// Runners maps a runner name to the command line that precedes the
	// scenario file, e.g. "npx playwright test".
	Runners      map[string]string
	WatchCatalog bool
}

// Load reads configuration from, in increasing precedence: defaults, the
// optional config file, a .env file in the working directory and the
// process environment. MAX_CONCURRENT is honoured without the prefix.
func Load(file string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.BindEnv(keyMaxConcurrent, envPrefix+"_MAX_CONCURRENT", "MAX_CONCURRENT"); err != nil {
		return Config{}, fmt.Errorf("bind %s: %w", keyMaxConcurrent, err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		ListenAddr:        v.GetString(keyListenAddr),
		DBPath:            v.GetString(keyDBPath),
		LogLevel:          parseLogLevel(v.GetString(keyLogLevel)),
		MaxConcurrent:     v.GetInt(keyMaxConcurrent),
		ApplicationsDir:   v.GetString(keyApplicationsDir),
		HistoryCapacity:   v.GetInt(keyHistoryCapacity),
		KeepAliveInterval: v.GetDuration(keyKeepAliveInterval),
		DefaultRunner:     strings.ToLower(v.GetString(keyDefaultRunner)),
		Runners:           v.GetStringMapString(keyRunners),
		WatchCatalog:      v.GetBool(keyWatchCatalog),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyMaxConcurrent, defaultMaxConcurrent)
	v.SetDefault(keyApplicationsDir, defaultApplicationsDir)
	v.SetDefault(keyHistoryCapacity, defaultHistoryCapacity)
	v.SetDefault(keyKeepAliveInterval, defaultKeepAliveInterval)
	v.SetDefault(keyDefaultRunner, defaultRunner)
	v.SetDefault(keyRunners, map[string]string{defaultRunner: defaultRunnerCommand})
	v.SetDefault(keyWatchCatalog, true)
}

func (c Config) validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", keyMaxConcurrent, c.MaxConcurrent)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", keyHistoryCapacity, c.HistoryCapacity)
	}
	if _, ok := c.Runners[c.DefaultRunner]; !ok {
		return fmt.Errorf("%s %q has no entry in %s", keyDefaultRunner, c.DefaultRunner, keyRunners)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
