package daemon

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration ($MEDIAFORGE_HOME/config.toml).
type Config struct {
	API           APIConfig           `toml:"api"`
	Database      DatabaseConfig      `toml:"database"`
	Jobs          JobsConfig          `toml:"jobs"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Video         VideoConfig         `toml:"video"`
	Archive       ArchiveConfig       `toml:"archive"`
	NATS          NATSConfig          `toml:"nats"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Dir string `toml:"dir"` // empty means $MEDIAFORGE_HOME
}

// JobsConfig holds controller timings. Durations use Go syntax ("10s", "5m").
type JobsConfig struct {
	PollInterval  string `toml:"poll_interval"`
	Timeout       string `toml:"timeout"`
	MaxConcurrent int    `toml:"max_concurrent"`
	SweepInterval string `toml:"sweep_interval"`
	StaleAfter    string `toml:"stale_after"`
}

type TranscriptionConfig struct {
	BaseURL       string  `toml:"base_url"`
	APIKey        string  `toml:"api_key"`
	MinCost       int64   `toml:"min_cost"`
	CostPerMinute int64   `toml:"cost_per_minute"`
	MaxURLLength  int     `toml:"max_url_length"`
	MaxDuration   float64 `toml:"max_duration_seconds"`
}

type VideoConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	Cost            int64  `toml:"cost"`
	MaxPromptLength int    `toml:"max_prompt_length"`
}

type ArchiveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`        // empty means $MEDIAFORGE_HOME/archive
	PublicURL string `toml:"public_url"` // empty means http://<api.host>:<api.port>
	Timeout   string `toml:"timeout"`    // download bound per asset
}

type NATSConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Jobs: JobsConfig{
			PollInterval:  "10s",
			Timeout:       "5m",
			MaxConcurrent: 16,
			SweepInterval: "1m",
			StaleAfter:    "15m",
		},
		Transcription: TranscriptionConfig{
			BaseURL:       "https://api.assemblyai.com",
			MinCost:       2,
			CostPerMinute: 2,
			MaxURLLength:  2048,
			MaxDuration:   4 * 60 * 60,
		},
		Video: VideoConfig{
			BaseURL:         "https://api.replicate.com",
			Model:           "minimax/video-01",
			Cost:            10,
			MaxPromptLength: 1000,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Timeout: "5m",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "mediaforge.jobs",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns $MEDIAFORGE_HOME, defaulting to ~/.mediaforge.
func Home() string {
	if env := os.Getenv("MEDIAFORGE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mediaforge")
}

// ConfigPath is the default config file location.
func ConfigPath() string { return filepath.Join(Home(), "config.toml") }

// LoadConfig reads path over the defaults, then applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets secrets stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MEDIAFORGE_TRANSCRIPTION_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("MEDIAFORGE_VIDEO_API_KEY"); v != "" {
		c.Video.APIKey = v
	}
	if v := os.Getenv("MEDIAFORGE_NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
}

// Validate rejects settings the controller cannot run with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Jobs.MaxConcurrent <= 0 {
		return fmt.Errorf("jobs.max_concurrent must be positive")
	}
	if c.Transcription.MinCost <= 0 || c.Transcription.CostPerMinute <= 0 || c.Video.Cost <= 0 {
		return fmt.Errorf("job costs must be positive")
	}
	if c.Transcription.MaxDuration <= 0 {
		return fmt.Errorf("transcription.max_duration_seconds must be positive")
	}
	if c.StaleAfter() <= c.MaxJobLifetime() {
		return fmt.Errorf("jobs.stale_after (%s) must exceed the longest a job can run (%s)", c.StaleAfter(), c.MaxJobLifetime())
	}
	return nil
}

// Save writes the configuration as TOML.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// ─── Derived Settings ───────────────────────────────────────────────────────

func (c Config) PollInterval() time.Duration  { return parseDuration(c.Jobs.PollInterval, 10*time.Second) }
func (c Config) JobTimeout() time.Duration    { return parseDuration(c.Jobs.Timeout, 5*time.Minute) }
func (c Config) SweepInterval() time.Duration { return parseDuration(c.Jobs.SweepInterval, time.Minute) }
func (c Config) StaleAfter() time.Duration    { return parseDuration(c.Jobs.StaleAfter, 15*time.Minute) }
func (c Config) ArchiveTimeout() time.Duration {
	return parseDuration(c.Archive.Timeout, 5*time.Minute)
}

// storeWriteMargin covers the final status write after archiving.
const storeWriteMargin = time.Minute

// MaxJobLifetime bounds how long one job can stay unfinished: the submit and
// poll budget, the archive download, then the terminal write.
func (c Config) MaxJobLifetime() time.Duration {
	d := c.JobTimeout() + storeWriteMargin
	if c.Archive.Enabled {
		d += c.ArchiveTimeout()
	}
	return d
}

// Addr is the API listen address.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port) }

// DatabaseDir resolves the SQLite directory.
func (c Config) DatabaseDir() string {
	if c.Database.Dir != "" {
		return c.Database.Dir
	}
	return Home()
}

// ArchiveDir resolves the blob store directory.
func (c Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(Home(), "archive")
}

// PublicURL is the base under which archived blobs are reachable.
func (c Config) PublicURL() string {
	if c.Archive.PublicURL != "" {
		return c.Archive.PublicURL
	}
	return "http://" + c.Addr()
}

// parseDuration falls back to def on empty or malformed input.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration %q, using %s", s, def)
		return def
	}
	return d
}
