package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSecrets()
	c.normalizeMedia()
	c.normalizeServices()
	c.normalizePoll()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

// normalizeSecrets applies environment overrides so credentials never have to
// live in the config file.
func (c *Config) normalizeSecrets() {
	if v := strings.TrimSpace(os.Getenv("PODIUM_SPEECH_API_KEY")); v != "" {
		c.Speech.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PODIUM_FEEDBACK_API_KEY")); v != "" {
		c.Feedback.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PODIUM_BIOMETRICS_API_KEY")); v != "" {
		c.Biometrics.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PODIUM_MEDIA_SECRET")); v != "" {
		c.Media.SigningSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("PODIUM_API_TOKEN")); v != "" {
		c.Paths.APIToken = v
	}
}

func (c *Config) normalizeMedia() {
	if c.Media.MaxUploadMiB <= 0 {
		c.Media.MaxUploadMiB = defaultMaxUploadMiB
	}
	if c.Media.AccessTTLSeconds <= 0 {
		c.Media.AccessTTLSeconds = defaultAccessTTLSeconds
	}
}

func (c *Config) normalizeServices() {
	if strings.TrimSpace(c.Speech.BaseURL) == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultTimeoutSeconds
	}
	if strings.TrimSpace(c.Feedback.BaseURL) == "" {
		c.Feedback.BaseURL = defaultFeedbackBaseURL
	}
	if len(c.Feedback.Models) == 0 {
		c.Feedback.Models = defaultFeedbackModels()
	}
	if c.Feedback.TimeoutSeconds <= 0 {
		c.Feedback.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Biometrics.TimeoutSeconds <= 0 {
		c.Biometrics.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizePoll() {
	if c.Poll.IntervalSeconds <= 0 {
		c.Poll.IntervalSeconds = defaultPollInterval
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = defaultPollMaxAttempts
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
