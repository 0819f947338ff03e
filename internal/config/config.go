package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	AudioOutputSpeaker = "speaker"
	AudioOutputDiscard = "discard"

	TranscriberHTTP        = "http"
	TranscriberCloudSpeech = "cloud_speech"
	TranscriberNone        = "none"

	DefaultWelcomeMessage = "Welcome to the mock interview. Please introduce yourself."
)

type Config struct {
	Env string

	ServerURL       string
	WSPath          string
	BatchPath       string
	HeaderBatchPath string
	TTSPath         string
	TranscribePath  string
	JobTitle        string
	JobDesc         string
	InterviewType   string
	Voice           string
	TTSModel        string
	SpeechSpeed     float64
	SessionID       string
	WelcomeMessage  string
	StrictMultipart bool
	AutoPlay        bool
	HTTPTimeout     time.Duration

	MaxRetries     int
	RetryDelay     time.Duration
	ReconnectDelay time.Duration
	DialTimeout    time.Duration

	AppendRetryDelay  time.Duration
	AppendMaxAttempts int

	AudioOutput          string
	AudioDumpPath        string
	AudioSampleRate      int
	AudioMaxPendingBytes int

	Transcriber                string
	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	MetricsAddr string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("INTERVIEW_SERVER_URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("INTERVIEW_SERVER_URL must use http or https, got %q", u.Scheme)
	}
	if c.SpeechSpeed < 0.25 || c.SpeechSpeed > 4.0 {
		return fmt.Errorf("INTERVIEW_SPEECH_SPEED must be between 0.25 and 4.0, got %v", c.SpeechSpeed)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("INTERVIEW_MAX_RETRIES must be positive, got %d", c.MaxRetries)
	}
	if c.AppendMaxAttempts <= 0 {
		return fmt.Errorf("INTERVIEW_APPEND_MAX_ATTEMPTS must be positive, got %d", c.AppendMaxAttempts)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{name: "INTERVIEW_RETRY_DELAY", value: c.RetryDelay},
		{name: "INTERVIEW_RECONNECT_DELAY", value: c.ReconnectDelay},
		{name: "INTERVIEW_DIAL_TIMEOUT", value: c.DialTimeout},
		{name: "INTERVIEW_APPEND_RETRY_DELAY", value: c.AppendRetryDelay},
		{name: "INTERVIEW_HTTP_TIMEOUT", value: c.HTTPTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	switch c.AudioOutput {
	case AudioOutputSpeaker, AudioOutputDiscard:
	default:
		return fmt.Errorf("AUDIO_OUTPUT must be %q or %q, got %q", AudioOutputSpeaker, AudioOutputDiscard, c.AudioOutput)
	}
	if c.AudioOutput == AudioOutputSpeaker && c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	switch c.Transcriber {
	case TranscriberHTTP, TranscriberNone:
	case TranscriberCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when TRANSCRIBER=%s", TranscriberCloudSpeech)
		}
	default:
		return fmt.Errorf("TRANSCRIBER must be one of %s, got %q", strings.Join([]string{TranscriberHTTP, TranscriberCloudSpeech, TranscriberNone}, ", "), c.Transcriber)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "INTERVIEW_SERVER_URL", value: c.ServerURL},
		{name: "INTERVIEW_JOB_TITLE", value: c.JobTitle},
		{name: "INTERVIEW_VOICE", value: c.Voice},
		{name: "INTERVIEW_TTS_MODEL", value: c.TTSModel},
		{name: "INTERVIEW_SESSION_ID", value: c.SessionID},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// WebSocketURL maps the server's http(s) base URL to the ws(s) channel URL.
func (c *Config) WebSocketURL() string {
	base := strings.TrimRight(c.ServerURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.WSPath
}

func (c *Config) EndpointURL(path string) string {
	return strings.TrimRight(c.ServerURL, "/") + path
}
