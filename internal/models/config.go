package models

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr  string `yaml:"server_addr"`
	Environment string `yaml:"environment"`
	DatabaseURL string `yaml:"database_url"`
	KafkaBroker string `yaml:"kafka_broker"`
	KafkaTopic  string `yaml:"kafka_topic"`

	// Artifacts live under StoragePath/reports, uploads wait in UploadDir.
	StoragePath     string `yaml:"storage_path"`
	UploadDir       string `yaml:"upload_dir"`
	ArtifactBackend string `yaml:"artifact_backend"` // local, supabase
	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseKey     string `yaml:"supabase_key"`
	SupabaseBucket  string `yaml:"supabase_bucket"`

	DeepLinkBase   string  `yaml:"deep_link_base"`
	Domain         string  `yaml:"domain"`
	Timezone       string  `yaml:"timezone"`
	TemplatePath   string  `yaml:"template_path"`
	LogoPath       string  `yaml:"logo_path"`
	FontPath       string  `yaml:"font_path"`
	FontSize       float64 `yaml:"font_size"`
	QREncoder      string  `yaml:"qr_encoder"` // skip2, boombuler
	WrapWidth      int     `yaml:"wrap_width"`
	WrapDivisor    int     `yaml:"wrap_divisor"`
	MaxDescription int     `yaml:"max_description"`
	Workers        int     `yaml:"workers"`

	StaleAfter    time.Duration `yaml:"stale_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.ServerAddr, ":8080")
	setDefault(&c.Environment, "development")
	setDefault(&c.KafkaTopic, "reports")
	setDefault(&c.StoragePath, "./storage")
	setDefault(&c.UploadDir, "./storage/tmp")
	setDefault(&c.ArtifactBackend, "local")
	setDefault(&c.Domain, "www.sweepin.itb.ac.id")
	setDefault(&c.Timezone, "Asia/Jakarta")
	setDefault(&c.QREncoder, "skip2")
	if c.FontSize <= 0 {
		c.FontSize = 20
	}
	if c.WrapWidth <= 0 {
		c.WrapWidth = 24
	}
	if c.WrapDivisor <= 0 {
		c.WrapDivisor = 20
	}
	if c.MaxDescription <= 0 {
		c.MaxDescription = 500
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.DeepLinkBase == "" {
		return fmt.Errorf("deep_link_base is required")
	}
	if c.TemplatePath == "" || c.LogoPath == "" {
		return fmt.Errorf("template_path and logo_path are required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %v", c.Timezone, err)
	}
	switch c.QREncoder {
	case "skip2", "boombuler":
	default:
		return fmt.Errorf("unknown qr_encoder %q", c.QREncoder)
	}
	switch c.ArtifactBackend {
	case "local":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" || c.SupabaseBucket == "" {
			return fmt.Errorf("supabase_url, supabase_key and supabase_bucket are required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown artifact_backend %q", c.ArtifactBackend)
	}
	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
