// Package config loads settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig  `mapstructure:"server" yaml:"server"`
	LLM        LLMConfig     `mapstructure:"llm" yaml:"llm"`
	STT        STTConfig     `mapstructure:"stt" yaml:"stt"`
	Audio      AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Storage    StorageConfig `mapstructure:"storage" yaml:"storage"`
	Cache      CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Categories []string      `mapstructure:"categories" yaml:"categories"`
	Log        LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxUploadBytes caps multipart audio uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	// Translate runs the English/Romanian translation step before classification.
	Translate bool `mapstructure:"translate" yaml:"translate"`
}

type STTConfig struct {
	// Providers is the fallback order. Known values: elevenlabs, google.
	Providers             []string      `mapstructure:"providers" yaml:"providers"`
	ElevenLabsAPIKey      string        `mapstructure:"elevenlabs_api_key" yaml:"-"`
	ElevenLabsModel       string        `mapstructure:"elevenlabs_model" yaml:"elevenlabs_model"`
	ElevenLabsBaseURL     string        `mapstructure:"elevenlabs_base_url" yaml:"elevenlabs_base_url"`
	GoogleLanguage        string        `mapstructure:"google_language" yaml:"google_language"`
	GoogleCredentialsFile string        `mapstructure:"google_credentials_file" yaml:"google_credentials_file"`
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries            int           `mapstructure:"max_retries" yaml:"max_retries"`
}

type AudioConfig struct {
	SampleRate       int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	ChunkSeconds     int    `mapstructure:"chunk_seconds" yaml:"chunk_seconds"`
	FramesPerBuffer  int    `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	SilenceThreshold int    `mapstructure:"silence_threshold" yaml:"silence_threshold"`
	AudioDir         string `mapstructure:"audio_dir" yaml:"audio_dir"`
	TranscriptsDir   string `mapstructure:"transcripts_dir" yaml:"transcripts_dir"`
	SaveAudio        bool   `mapstructure:"save_audio" yaml:"save_audio"`
}

type StorageConfig struct {
	GCSBucket       string `mapstructure:"gcs_bucket" yaml:"gcs_bucket"`
	GCSPrefix       string `mapstructure:"gcs_prefix" yaml:"gcs_prefix"`
	BigQueryProject string `mapstructure:"bigquery_project" yaml:"bigquery_project"`
	BigQueryDataset string `mapstructure:"bigquery_dataset" yaml:"bigquery_dataset"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"-"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvPrefix is prepended to every config key, e.g. EXPENSE_LLM_MODEL.
const EnvPrefix = "EXPENSE"

// legacyEnv maps keys to the unprefixed variable names that are also honoured.
var legacyEnv = map[string]string{
	"llm.api_key":                 "GEMINI_API_KEY",
	"llm.model":                   "LLM_MODEL_NAME",
	"stt.elevenlabs_api_key":      "ELEVENLABS_API_KEY",
	"storage.bigquery_project":    "GOOGLE_CLOUD_PROJECT",
	"storage.gcs_bucket":          "GCS_BUCKET",
	"cache.redis_addr":            "REDIS_ADDR",
	"stt.google_credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.translate", true)

	v.SetDefault("stt.providers", []string{"elevenlabs", "google"})
	v.SetDefault("stt.elevenlabs_api_key", "")
	v.SetDefault("stt.elevenlabs_model", "scribe_v1")
	v.SetDefault("stt.elevenlabs_base_url", "https://api.elevenlabs.io")
	v.SetDefault("stt.google_language", "en-US")
	v.SetDefault("stt.google_credentials_file", "")
	v.SetDefault("stt.timeout", 30*time.Second)
	v.SetDefault("stt.max_retries", 3)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.chunk_seconds", 8)
	v.SetDefault("audio.frames_per_buffer", 1024)
	v.SetDefault("audio.silence_threshold", 300)
	v.SetDefault("audio.audio_dir", "audio_recordings")
	v.SetDefault("audio.transcripts_dir", "transcripts")
	v.SetDefault("audio.save_audio", true)

	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "expense-voice")
	v.SetDefault("storage.bigquery_project", "")
	v.SetDefault("storage.bigquery_dataset", "expense_voice")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("categories", []string{"going out", "house expense", "groceries"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// New returns a viper instance with defaults and environment bindings,
// ready for flags to be bound before Load reads it.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}
	return v
}

// Load reads path (or config.yaml from the working directory and
// $HOME/.config/expense-voice when path is empty) into a Config.
// A missing default config file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith is Load using a prepared viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "expense-voice"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	providers := make([]string, 0, len(c.STT.Providers))
	for _, p := range c.STT.Providers {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			providers = append(providers, p)
		}
	}
	c.STT.Providers = providers
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("categories: at least one category is required"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	if c.Audio.ChunkSeconds <= 0 {
		errs = append(errs, errors.New("audio.chunk_seconds must be positive"))
	}
	if c.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, errors.New("audio.frames_per_buffer must be positive"))
	}
	for _, p := range c.STT.Providers {
		if p != ProviderElevenLabs && p != ProviderGoogle {
			errs = append(errs, fmt.Errorf("stt.providers: unknown provider %q", p))
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: invalid value %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RequireLLM reports whether the generative model can be called.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (set GEMINI_API_KEY)")
	}
	return nil
}

// Known speech-to-text providers.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderGoogle     = "google"
)

// BigQueryEnabled reports whether classification runs should be persisted.
func (c *Config) BigQueryEnabled() bool {
	return c.Storage.BigQueryProject != "" && c.Storage.BigQueryDataset != ""
}
