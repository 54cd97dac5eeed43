package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultJobConfig returns the per-job crawl config with the §6 defaults
// (max_pages=50, max_depth=2, quality_threshold=20, ...) layered on top of
// the shared extraction-tuning defaults in WithDefault.
func DefaultJobConfig(seedURL url.URL) (Config, error) {
	return WithDefault([]url.URL{seedURL}).
		WithMaxDepth(2).
		WithMaxPages(50).
		WithTimeout(8 * time.Second).
		Build()
}

// SubmitConfig is the wire-shape of the optional `config` object on a
// submit-crawl request (§6). It is validated before a Job row is ever
// created; a validation failure is an InvalidInput per §7, not a job.
type SubmitConfig struct {
	MaxPages         int  `json:"max_pages,omitempty" yaml:"max_pages,omitempty" validate:"omitempty,gte=1,lte=10000"`
	MaxDepth         int  `json:"max_depth,omitempty" yaml:"max_depth,omitempty" validate:"omitempty,gte=0,lte=20"`
	QualityThreshold int  `json:"quality_threshold,omitempty" yaml:"quality_threshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	RespectRobots    bool `json:"respect_robots" yaml:"respect_robots"`
	FollowSitemaps   bool `json:"follow_sitemaps" yaml:"follow_sitemaps"`
	ForceRefresh     bool `json:"force_refresh" yaml:"force_refresh"`
}

var validate = validator.New()

// Validate runs struct-tag validation over a SubmitConfig, returning the
// first validation failure formatted as a user-facing message.
func Validate(c SubmitConfig) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid job config: %w", err)
	}
	return nil
}

// ApplyTo layers a validated SubmitConfig's non-zero fields onto base,
// matching the teacher's "only override non-zero fields" DTO convention.
func (c SubmitConfig) ApplyTo(base Config) Config {
	cfg := &base
	if c.MaxPages != 0 {
		cfg = cfg.WithMaxPages(c.MaxPages)
	}
	if c.MaxDepth != 0 {
		cfg = cfg.WithMaxDepth(c.MaxDepth)
	}
	if c.QualityThreshold != 0 {
		cfg = cfg.WithQualityThreshold(c.QualityThreshold)
	}
	cfg = cfg.WithRespectRobots(c.RespectRobots).
		WithFollowSitemaps(c.FollowSitemaps).
		WithForceRefresh(c.ForceRefresh)
	return *cfg
}

// ServiceConfig is the ambient, process-wide configuration of the engine
// when it runs as a long-lived service: where the durable store lives,
// how big the node-wide worker pool is, what port metrics listen on. It is
// loaded from an optional YAML file (static defaults) overlaid with
// environment variables (deployment overrides), mirroring the layering
// `lueurxax-TelegramDigestBot` uses (`caarlos0/env` over file-based config).
type ServiceConfig struct {
	StoreDir          string        `yaml:"store_dir" env:"DOCSCRAWLER_STORE_DIR" envDefault:"./data/store"`
	NodeWorkerPool    int           `yaml:"node_worker_pool" env:"DOCSCRAWLER_NODE_WORKER_POOL" envDefault:"20"`
	MetricsAddr       string        `yaml:"metrics_addr" env:"DOCSCRAWLER_METRICS_ADDR" envDefault:":9090"`
	LogLevel          string        `yaml:"log_level" env:"DOCSCRAWLER_LOG_LEVEL" envDefault:"info"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" env:"DOCSCRAWLER_FETCH_TIMEOUT" envDefault:"8s"`
	UserAgent         string        `yaml:"user_agent" env:"DOCSCRAWLER_USER_AGENT" envDefault:"docs-crawler/1.0"`
}

// LoadServiceConfig reads an optional YAML file at path (skipped silently
// if it does not exist) then overlays environment variables.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := ServiceConfig{}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ServiceConfig{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
			}
		} else if !os.IsNotExist(err) {
			return ServiceConfig{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return cfg, nil
}
