package config

const (
	defaultDataDir          = "~/.local/share/podium/data"
	defaultLogDir           = "~/.local/share/podium/logs"
	defaultAPIBind          = "127.0.0.1:7519"
	defaultMaxUploadMiB     = 100
	defaultAccessTTLSeconds = 3600
	defaultSpeechBaseURL    = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultFeedbackBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultFeedbackReferer  = "https://github.com/podium-app/podium"
	defaultFeedbackTitle    = "Podium Feedback"
	defaultTimeoutSeconds   = 60
	defaultPollInterval     = 3
	defaultPollMaxAttempts  = 20
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

func defaultFeedbackModels() []string {
	return []string{
		"google/gemini-2.5-flash",
		"google/gemini-flash-1.5",
		"openai/gpt-4o-mini",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Media: Media{
			MaxUploadMiB:     defaultMaxUploadMiB,
			AccessTTLSeconds: defaultAccessTTLSeconds,
		},
		Biometrics: Biometrics{
			Enabled:        true,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Feedback: Feedback{
			BaseURL:        defaultFeedbackBaseURL,
			Models:         defaultFeedbackModels(),
			Referer:        defaultFeedbackReferer,
			Title:          defaultFeedbackTitle,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Poll: Poll{
			IntervalSeconds: defaultPollInterval,
			MaxAttempts:     defaultPollMaxAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
