package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
)

type Config struct {
	AWS      AWSConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	Pipeline PipelineConfig
	LogLevel string
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	UsePathStyle    bool
}

type StorageConfig struct {
	Bucket    string
	KeyPrefix string
}

type AnalysisConfig struct {
	FeatureTypes []string
	JobTag       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type PipelineConfig struct {
	ResultPath   string
	JPEGQuality  int
	StrictVerify bool
}

// Load reads configuration from the process environment with sensible
// defaults. The bucket is allowed to be empty here; the command layer
// validates it after merging flag overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_DEFAULT_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT_URL", "")
	v.SetDefault("S3_BUCKET_NAME", "")
	v.SetDefault("S3_KEY_PREFIX", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("ANALYSIS_FEATURE_TYPES", domain.FeatureForms+","+domain.FeatureTables)
	v.SetDefault("ANALYSIS_JOB_TAG", "ReceiptAnalysis")
	v.SetDefault("ANALYSIS_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("ANALYSIS_POLL_TIMEOUT", 10*time.Minute)
	v.SetDefault("JPEG_QUALITY", 95)
	v.SetDefault("VERIFY_STRICT", false)
	v.SetDefault("RESULT_PATH", "async_output.json")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	features, err := domain.NormalizeFeatureTypes(splitList(v.GetString("ANALYSIS_FEATURE_TYPES")))
	if err != nil {
		return nil, domain.ConfigError("invalid ANALYSIS_FEATURE_TYPES", err)
	}

	cfg := &Config{
		AWS: AWSConfig{
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			Region:          v.GetString("AWS_DEFAULT_REGION"),
			Endpoint:        v.GetString("AWS_ENDPOINT_URL"),
			UsePathStyle:    v.GetBool("S3_USE_PATH_STYLE"),
		},
		Storage: StorageConfig{
			Bucket:    v.GetString("S3_BUCKET_NAME"),
			KeyPrefix: v.GetString("S3_KEY_PREFIX"),
		},
		Analysis: AnalysisConfig{
			FeatureTypes: features,
			JobTag:       v.GetString("ANALYSIS_JOB_TAG"),
			PollInterval: v.GetDuration("ANALYSIS_POLL_INTERVAL"),
			PollTimeout:  v.GetDuration("ANALYSIS_POLL_TIMEOUT"),
		},
		Pipeline: PipelineConfig{
			ResultPath:   v.GetString("RESULT_PATH"),
			JPEGQuality:  v.GetInt("JPEG_QUALITY"),
			StrictVerify: v.GetBool("VERIFY_STRICT"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that have to be sane regardless of where
// they came from.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return domain.ConfigError("AWS region must not be empty", nil)
	}
	if q := c.Pipeline.JPEGQuality; q < 1 || q > 100 {
		return domain.ConfigError("JPEG quality must be between 1 and 100", nil)
	}
	if c.Analysis.PollInterval <= 0 {
		return domain.ConfigError("poll interval must be positive", nil)
	}
	if c.Analysis.PollTimeout < 0 {
		return domain.ConfigError("poll timeout must not be negative", nil)
	}
	if len(c.Analysis.FeatureTypes) == 0 {
		return domain.ConfigError("at least one analysis feature type is required", nil)
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
