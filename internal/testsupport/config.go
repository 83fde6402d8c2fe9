package testsupport

import (
	"path/filepath"
	"testing"

	"podium/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Media.SigningSecret = "test-secret"
	cfgVal.Speech.APIKey = "test-speech-key"
	cfgVal.Feedback.APIKey = "test-feedback-key"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFeedbackModels overrides the ordered model candidate list.
func WithFeedbackModels(models ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feedback.Models = models
	}
}

// WithBiometrics enables the biometric stage against the given base URL.
func WithBiometrics(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Biometrics.Enabled = true
		b.cfg.Biometrics.BaseURL = baseURL
		b.cfg.Biometrics.APIKey = apiKey
	}
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}
