package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8088 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8088)
	}
	if cfg.Jobs.PollInterval != "10s" {
		t.Errorf("Jobs.PollInterval = %q, want %q", cfg.Jobs.PollInterval, "10s")
	}
	if cfg.Jobs.Timeout != "5m" {
		t.Errorf("Jobs.Timeout = %q, want %q", cfg.Jobs.Timeout, "5m")
	}
	if cfg.Jobs.MaxConcurrent != 16 {
		t.Errorf("Jobs.MaxConcurrent = %d, want %d", cfg.Jobs.MaxConcurrent, 16)
	}
	if cfg.Transcription.MinCost != 2 || cfg.Transcription.CostPerMinute != 2 {
		t.Errorf("Transcription pricing = %d/%d, want 2/2", cfg.Transcription.MinCost, cfg.Transcription.CostPerMinute)
	}
	if cfg.Video.Cost != 10 {
		t.Errorf("Video.Cost = %d, want %d", cfg.Video.Cost, 10)
	}
	if !cfg.Archive.Enabled {
		t.Error("Archive.Enabled should be true by default")
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default (opt-in)")
	}
	if cfg.Transcription.MaxDuration != 4*60*60 {
		t.Errorf("Transcription.MaxDuration = %v, want 4h", cfg.Transcription.MaxDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestMaxJobLifetime(t *testing.T) {
	cfg := DefaultConfig()
	// 5m budget + 5m archive download + 1m final write
	if got := cfg.MaxJobLifetime(); got != 11*time.Minute {
		t.Errorf("MaxJobLifetime() = %v, want 11m", got)
	}
	if cfg.StaleAfter() <= cfg.MaxJobLifetime() {
		t.Errorf("default stale_after %v does not exceed job lifetime %v", cfg.StaleAfter(), cfg.MaxJobLifetime())
	}

	cfg.Archive.Enabled = false
	if got := cfg.MaxJobLifetime(); got != 6*time.Minute {
		t.Errorf("MaxJobLifetime() without archive = %v, want 6m", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"10s", 10 * time.Second},
		{"5m", 5 * time.Minute},
		{"", time.Minute},         // Default
		{"soon", time.Minute},     // Malformed
		{"-5s", time.Minute},      // Non-positive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDuration(tt.input, time.Minute)
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MEDIAFORGE_HOME", home)
	t.Setenv("MEDIAFORGE_VIDEO_API_KEY", "from-env")

	data := `
[api]
port = 9000

[jobs]
poll_interval = "2s"
timeout = "1m"
stale_after = "8m"

[video]
api_key = "from-file"
cost = 25
`
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, default should survive", cfg.API.Host)
	}
	if cfg.PollInterval() != 2*time.Second || cfg.JobTimeout() != time.Minute {
		t.Errorf("timings = %v/%v", cfg.PollInterval(), cfg.JobTimeout())
	}
	if cfg.Video.Cost != 25 {
		t.Errorf("Video.Cost = %d, want 25", cfg.Video.Cost)
	}
	if cfg.Video.APIKey != "from-env" {
		t.Errorf("Video.APIKey = %q, env should win", cfg.Video.APIKey)
	}
	if cfg.DatabaseDir() != home {
		t.Errorf("DatabaseDir() = %q, want %q", cfg.DatabaseDir(), home)
	}
	if cfg.ArchiveDir() != filepath.Join(home, "archive") {
		t.Errorf("ArchiveDir() = %q", cfg.ArchiveDir())
	}
	if cfg.PublicURL() != "http://127.0.0.1:9000" {
		t.Errorf("PublicURL() = %q", cfg.PublicURL())
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("MEDIAFORGE_HOME", t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfig_NATSFromEnv(t *testing.T) {
	t.Setenv("MEDIAFORGE_HOME", t.TempDir())
	t.Setenv("MEDIAFORGE_NATS_URL", "nats://bus:4222")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://bus:4222" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.API.Port = 0 }},
		{"no slots", func(c *Config) { c.Jobs.MaxConcurrent = 0 }},
		{"free video", func(c *Config) { c.Video.Cost = 0 }},
		{"sweep inside timeout", func(c *Config) { c.Jobs.StaleAfter = "1m" }},
		{"sweep inside archive window", func(c *Config) { c.Jobs.StaleAfter = "10m" }},
		{"unlimited transcription", func(c *Config) { c.Transcription.MaxDuration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.API.Port = 9191
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv("MEDIAFORGE_HOME", t.TempDir())
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 9191 {
		t.Errorf("API.Port = %d, want 9191", got.API.Port)
	}
}
