package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the canonical record store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures outbound requests to the external sources.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	Retries     int    `yaml:"retries" mapstructure:"retries"`
	BackoffMs   int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	DelayMs     int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Backoff returns the fixed delay between retry attempts.
func (f FetchConfig) Backoff() time.Duration {
	return time.Duration(f.BackoffMs) * time.Millisecond
}

// Delay returns the politeness delay between consecutive requests.
func (f FetchConfig) Delay() time.Duration {
	return time.Duration(f.DelayMs) * time.Millisecond
}

// Timeout returns the per-request transport timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// SourceConfig configures the two external sources.
type SourceConfig struct {
	HTML HTMLSourceConfig `yaml:"html" mapstructure:"html"`
	PDF  PDFSourceConfig  `yaml:"pdf" mapstructure:"pdf"`
}

// HTMLSourceConfig addresses the paginated third-party salary site.
type HTMLSourceConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	RosterPath     string `yaml:"roster_path" mapstructure:"roster_path"`
	DepartmentPath string `yaml:"department_path" mapstructure:"department_path"`
	DefaultCampus  string `yaml:"default_campus" mapstructure:"default_campus"`
}

// PDFSourceConfig configures the published report and text extraction.
type PDFSourceConfig struct {
	URL     string    `yaml:"url" mapstructure:"url"`
	TempDir string    `yaml:"temp_dir" mapstructure:"temp_dir"`
	OCR     OCRConfig `yaml:"ocr" mapstructure:"ocr"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// IngestConfig configures the run controller and loader.
type IngestConfig struct {
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	LedgerPath       string `yaml:"ledger_path" mapstructure:"ledger_path"`
	LatestFiscalYear int    `yaml:"latest_fiscal_year" mapstructure:"latest_fiscal_year"`
}

// NormalizeConfig points at an optional file extending the heuristic rule tables.
type NormalizeConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SALARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "salary-cli/1.0 (public salary disclosure indexer)")
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.backoff_ms", 2000)
	v.SetDefault("fetch.delay_ms", 1500)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("source.html.base_url", "https://www.umsalary.info")
	v.SetDefault("source.html.roster_path", "/deptsearch.php")
	v.SetDefault("source.html.department_path", "/deptsearch.php")
	v.SetDefault("source.html.default_campus", "UM_ANN-ARBOR")
	v.SetDefault("source.pdf.url", "")
	v.SetDefault("source.pdf.temp_dir", "/tmp/salary-cli")
	v.SetDefault("source.pdf.ocr.provider", "local")
	v.SetDefault("source.pdf.ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ingest.batch_size", 100)
	v.SetDefault("ingest.ledger_path", "failed_departments.jsonl")
	v.SetDefault("ingest.latest_fiscal_year", 2025)
	v.SetDefault("normalize.rules_file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
