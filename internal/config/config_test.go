package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsaihsilo/receipt-recognition-app/internal/domain"
)

var envKeys = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_DEFAULT_REGION",
	"AWS_ENDPOINT_URL",
	"S3_BUCKET_NAME",
	"S3_KEY_PREFIX",
	"S3_USE_PATH_STYLE",
	"ANALYSIS_FEATURE_TYPES",
	"ANALYSIS_JOB_TAG",
	"ANALYSIS_POLL_INTERVAL",
	"ANALYSIS_POLL_TIMEOUT",
	"JPEG_QUALITY",
	"VERIFY_STRICT",
	"RESULT_PATH",
	"LOG_LEVEL",
}

// clearEnv blanks every configuration variable so host values do not
// leak into the test. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Empty(t, cfg.AWS.Endpoint)
	assert.False(t, cfg.AWS.UsePathStyle)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Empty(t, cfg.Storage.KeyPrefix)
	assert.Equal(t, []string{"FORMS", "TABLES"}, cfg.Analysis.FeatureTypes)
	assert.Equal(t, "ReceiptAnalysis", cfg.Analysis.JobTag)
	assert.Equal(t, 5*time.Second, cfg.Analysis.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Analysis.PollTimeout)
	assert.Equal(t, 95, cfg.Pipeline.JPEGQuality)
	assert.False(t, cfg.Pipeline.StrictVerify)
	assert.Equal(t, "async_output.json", cfg.Pipeline.ResultPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:9000")
	t.Setenv("S3_BUCKET_NAME", "receipt-archive")
	t.Setenv("S3_KEY_PREFIX", "scans/2024")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("ANALYSIS_JOB_TAG", "Quarterly")
	t.Setenv("ANALYSIS_POLL_INTERVAL", "2s")
	t.Setenv("ANALYSIS_POLL_TIMEOUT", "0")
	t.Setenv("JPEG_QUALITY", "80")
	t.Setenv("VERIFY_STRICT", "true")
	t.Setenv("RESULT_PATH", "out/result.json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.AccessKeyID)
	assert.Equal(t, "secret", cfg.AWS.SecretAccessKey)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "http://localhost:9000", cfg.AWS.Endpoint)
	assert.True(t, cfg.AWS.UsePathStyle)
	assert.Equal(t, "receipt-archive", cfg.Storage.Bucket)
	assert.Equal(t, "scans/2024", cfg.Storage.KeyPrefix)
	assert.Equal(t, "Quarterly", cfg.Analysis.JobTag)
	assert.Equal(t, 2*time.Second, cfg.Analysis.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Analysis.PollTimeout, "zero timeout means wait forever")
	assert.Equal(t, 80, cfg.Pipeline.JPEGQuality)
	assert.True(t, cfg.Pipeline.StrictVerify)
	assert.Equal(t, "out/result.json", cfg.Pipeline.ResultPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadNormalizesFeatureTypes(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANALYSIS_FEATURE_TYPES", "forms, layout,forms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"FORMS", "LAYOUT"}, cfg.Analysis.FeatureTypes)
}

func TestLoadRejectsUnknownFeatureType(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANALYSIS_FEATURE_TYPES", "FORMS,BARCODES")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"quality too high", "JPEG_QUALITY", "101"},
		{"quality too low", "JPEG_QUALITY", "-3"},
		{"zero poll interval", "ANALYSIS_POLL_INTERVAL", "0s"},
		{"negative poll timeout", "ANALYSIS_POLL_TIMEOUT", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AWS: AWSConfig{Region: "us-east-1"},
			Analysis: AnalysisConfig{
				FeatureTypes: []string{"FORMS"},
				PollInterval: time.Second,
			},
			Pipeline: PipelineConfig{JPEGQuality: 95},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty region", func(c *Config) { c.AWS.Region = "" }},
		{"no feature types", func(c *Config) { c.Analysis.FeatureTypes = nil }},
		{"zero interval", func(c *Config) { c.Analysis.PollInterval = 0 }},
		{"negative timeout", func(c *Config) { c.Analysis.PollTimeout = -time.Second }},
		{"quality out of range", func(c *Config) { c.Pipeline.JPEGQuality = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"FORMS", "TABLES"}, splitList("FORMS,TABLES"))
	assert.Equal(t, []string{"FORMS", "TABLES"}, splitList("FORMS, TABLES"))
	assert.Equal(t, []string{"FORMS"}, splitList("  FORMS  "))
	assert.Empty(t, splitList(""))
}
