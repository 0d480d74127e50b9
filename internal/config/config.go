// Package config provides configuration management for audarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultIdleTimeout     = 2 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultProbeTimeout    = 30 * time.Second
	defaultClientWait      = 60
	defaultBitrate         = 192000
	defaultPumpBuffer      = 256 * 1024
	defaultChunkSize       = 256 * 1024
	defaultPruneCron       = "30 3 * * *"
)

// Config is the full audarr configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Media     MediaConfig     `mapstructure:"media"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout must stay zero: stream responses outlive any sane
	// fixed deadline.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig controls the track store connection.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite (default), postgres, mysql
	DSN             string        `mapstructure:"dsn" masq:"secret"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // gorm logger: silent, error, warn, info
}

// MediaConfig holds media library and probing configuration.
type MediaConfig struct {
	// Root is the directory tracks must live under. Paths outside it are
	// refused at registration time.
	Root         string   `mapstructure:"root"`
	ProbePath    string   `mapstructure:"probe_path"` // ffprobe binary (empty = look up in PATH)
	ProbeTimeout Duration `mapstructure:"probe_timeout"`
}

// TranscodeConfig holds the caching transcoder configuration.
//
// The dashed key names (cache-root, allowed-bitrates, encoder-path,
// client-wait-timeout-seconds) are the stable external contract; renaming
// them breaks existing deployments.
type TranscodeConfig struct {
	CacheRoot                string   `mapstructure:"cache-root"`
	AllowedBitrates          []int    `mapstructure:"allowed-bitrates"`
	EncoderPath              string   `mapstructure:"encoder-path"`
	ClientWaitTimeoutSeconds int      `mapstructure:"client-wait-timeout-seconds"`
	DefaultFormat            string   `mapstructure:"default-format"`
	DefaultBitrate           int      `mapstructure:"default-bitrate"`
	PumpBufferSize           ByteSize `mapstructure:"pump-buffer-size"`
	ChunkSize                ByteSize `mapstructure:"chunk-size"`
}

// ClientWaitTimeout returns the per-client safety timer as a duration.
func (c *TranscodeConfig) ClientWaitTimeout() time.Duration {
	return time.Duration(c.ClientWaitTimeoutSeconds) * time.Second
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json or text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SchedulerConfig holds background maintenance configuration.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TrackPruneSchedule is a five-field cron expression for dropping
	// track rows whose files have disappeared from the media root.
	TrackPruneSchedule string `mapstructure:"track_prune_schedule"`
}

// Bootstrap prepares v the way audarr reads configuration: defaults first,
// then the config file, then AUDARR_-prefixed environment variables, which
// win over the file. Env var names use underscores for nesting and in place
// of dashes, for example AUDARR_TRANSCODE_CACHE_ROOT=/var/cache/audarr.
//
// An explicit configFile is used as given; otherwise config.yaml is searched
// for in ., ./configs, /etc/audarr and $HOME/.audarr. Bootstrap returns the
// path of the file actually read, empty when none was found.
func Bootstrap(v *viper.Viper, configFile string) (string, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range []string{".", "./configs", "/etc/audarr", "$HOME/.audarr"} {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("AUDARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// No config file anywhere on the search path is fine, defaults and env
	// vars apply. An explicit path that cannot be read is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("reading config file: %w", err)
		}
		return "", nil
	}

	return v.ConfigFileUsed(), nil
}

// Load reads configuration into a fresh viper and validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if _, err := Bootstrap(v, configPath); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper unmarshals and validates a configuration from an already
// initialized viper instance. The caller must have applied SetDefaults and
// read any config file or flag bindings beforehand.
func FromViper(v *viper.Viper) (*Config, error) {
	// The text-unmarshaller hook lets ByteSize and Duration fields accept
	// human-readable strings ("256KB", "90s") from files and env vars.
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// defaultValues lists the default for every configuration key, in the order
// the sections appear in Config.
var defaultValues = []struct {
	key   string
	value any
}{
	{"server.host", "0.0.0.0"},
	{"server.port", defaultServerPort},
	{"server.read_timeout", defaultServerTimeout},
	{"server.write_timeout", time.Duration(0)},
	{"server.idle_timeout", defaultIdleTimeout},
	{"server.shutdown_timeout", defaultShutdownTimeout},
	{"server.cors_origins", []string{"*"}},

	{"database.driver", "sqlite"},
	{"database.dsn", "audarr.db"},
	{"database.max_open_conns", defaultMaxOpenConns},
	{"database.max_idle_conns", defaultMaxIdleConns},
	{"database.conn_max_lifetime", time.Hour},
	{"database.conn_max_idle_time", defaultConnMaxIdleTime},
	{"database.log_level", "warn"},

	{"media.root", "./music"},
	{"media.probe_path", ""},
	{"media.probe_timeout", Duration(defaultProbeTimeout)},

	{"transcode.cache-root", "./cache/transcode"},
	{"transcode.allowed-bitrates", []int{320000, 256000, 192000, 160000, 128000, 96000, 64000, 32000}},
	{"transcode.encoder-path", "ffmpeg"},
	{"transcode.client-wait-timeout-seconds", defaultClientWait},
	{"transcode.default-format", "mp3"},
	{"transcode.default-bitrate", defaultBitrate},
	{"transcode.pump-buffer-size", defaultPumpBuffer},
	{"transcode.chunk-size", defaultChunkSize},

	{"logging.level", "info"},
	{"logging.format", "json"},
	{"logging.add_source", false},
	{"logging.time_format", time.RFC3339},

	{"scheduler.enabled", true},
	{"scheduler.track_prune_schedule", defaultPruneCron},
}

// SetDefaults registers the default value for every configuration key.
// Call it on a fresh viper before reading files or binding flags.
func SetDefaults(v *viper.Viper) {
	for _, d := range defaultValues {
		v.SetDefault(d.key, d.value)
	}
}

// knownFormats are the output container/codec combinations the transcoder
// can produce.
var knownFormats = []string{"mp3", "opus", "matroska", "vorbis", "webm"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if c.Media.Root == "" {
		return fmt.Errorf("media.root is required")
	}
	if err := c.Transcode.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (c *ServerConfig) validate() error {
	const maxPort = 65535
	if c.Port < 1 || c.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	return nil
}

func (c *DatabaseConfig) validate() error {
	if !slices.Contains([]string{"sqlite", "postgres", "mysql"}, c.Driver) {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if !slices.Contains([]string{"silent", "error", "warn", "info"}, c.LogLevel) {
		return fmt.Errorf("database.log_level must be one of: silent, error, warn, info")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must not be negative")
	}
	return nil
}

func (c *TranscodeConfig) validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("transcode.cache-root is required")
	}
	if c.EncoderPath == "" {
		return fmt.Errorf("transcode.encoder-path is required")
	}
	if len(c.AllowedBitrates) == 0 {
		return fmt.Errorf("transcode.allowed-bitrates must not be empty")
	}
	for _, br := range c.AllowedBitrates {
		if br <= 0 {
			return fmt.Errorf("transcode.allowed-bitrates entries must be positive, got %d", br)
		}
	}
	if c.ClientWaitTimeoutSeconds < 1 {
		return fmt.Errorf("transcode.client-wait-timeout-seconds must be at least 1")
	}
	if !slices.Contains(knownFormats, c.DefaultFormat) {
		return fmt.Errorf("transcode.default-format must be one of: %s", strings.Join(knownFormats, ", "))
	}
	if c.DefaultBitrate <= 0 {
		return fmt.Errorf("transcode.default-bitrate must be positive")
	}
	if c.PumpBufferSize < 4*1024 {
		return fmt.Errorf("transcode.pump-buffer-size must be at least 4KB")
	}
	if c.ChunkSize < 4*1024 {
		return fmt.Errorf("transcode.chunk-size must be at least 4KB")
	}
	return nil
}

func (c *LoggingConfig) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error"}, c.Level) {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	if !slices.Contains([]string{"json", "text"}, c.Format) {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
