package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/mensetsu/internal/config"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const dotenvFile = ".env"

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ServerURL                  string        `env:"INTERVIEW_SERVER_URL,required"`
	WSPath                     string        `env:"INTERVIEW_WS_PATH" envDefault:"/ws/interview"`
	BatchPath                  string        `env:"INTERVIEW_BATCH_PATH" envDefault:"/api/rag-tts-multipart"`
	HeaderBatchPath            string        `env:"INTERVIEW_HEADER_BATCH_PATH" envDefault:"/api/rag-tts"`
	TTSPath                    string        `env:"INTERVIEW_TTS_PATH" envDefault:"/api/tts"`
	TranscribePath             string        `env:"INTERVIEW_TRANSCRIBE_PATH" envDefault:"/api/transcribe"`
	JobTitle                   string        `env:"INTERVIEW_JOB_TITLE,required"`
	JobDesc                    string        `env:"INTERVIEW_JOB_DESC"`
	InterviewType              string        `env:"INTERVIEW_TYPE"`
	Voice                      string        `env:"INTERVIEW_VOICE" envDefault:"alloy"`
	TTSModel                   string        `env:"INTERVIEW_TTS_MODEL" envDefault:"tts-1"`
	SpeechSpeed                float64       `env:"INTERVIEW_SPEECH_SPEED" envDefault:"1.0"`
	SessionID                  string        `env:"INTERVIEW_SESSION_ID"`
	Welcome                    bool          `env:"INTERVIEW_WELCOME" envDefault:"true"`
	WelcomeMessage             string        `env:"INTERVIEW_WELCOME_MESSAGE"`
	StrictMultipart            bool          `env:"INTERVIEW_STRICT_MULTIPART" envDefault:"false"`
	AutoPlay                   bool          `env:"INTERVIEW_AUTOPLAY" envDefault:"true"`
	HTTPTimeout                time.Duration `env:"INTERVIEW_HTTP_TIMEOUT" envDefault:"2m"`
	MaxRetries                 int           `env:"INTERVIEW_MAX_RETRIES" envDefault:"3"`
	RetryDelay                 time.Duration `env:"INTERVIEW_RETRY_DELAY" envDefault:"2s"`
	ReconnectDelay             time.Duration `env:"INTERVIEW_RECONNECT_DELAY" envDefault:"1s"`
	DialTimeout                time.Duration `env:"INTERVIEW_DIAL_TIMEOUT" envDefault:"15s"`
	AppendRetryDelay           time.Duration `env:"INTERVIEW_APPEND_RETRY_DELAY" envDefault:"20ms"`
	AppendMaxAttempts          int           `env:"INTERVIEW_APPEND_MAX_ATTEMPTS" envDefault:"250"`
	AudioOutput                string        `env:"AUDIO_OUTPUT" envDefault:"speaker"`
	AudioDumpPath              string        `env:"AUDIO_DUMP_PATH"`
	AudioSampleRate            int           `env:"AUDIO_SAMPLE_RATE" envDefault:"24000"`
	AudioMaxPendingBytes       int           `env:"AUDIO_MAX_PENDING_BYTES" envDefault:"262144"`
	Transcriber                string        `env:"TRANSCRIBER" envDefault:"http"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	MetricsAddr                string        `env:"METRICS_ADDR"`
}

// Load reads an optional .env file, then the process environment. Variables
// already set in the environment take precedence over the file.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", dotenvFile, err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	sessionID := raw.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		slog.Debug("generated session id", "session_id", sessionID)
	}
	welcome := raw.WelcomeMessage
	if welcome == "" {
		welcome = internalconfig.DefaultWelcomeMessage
	}
	if !raw.Welcome {
		welcome = ""
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ServerURL:                  raw.ServerURL,
		WSPath:                     raw.WSPath,
		BatchPath:                  raw.BatchPath,
		HeaderBatchPath:            raw.HeaderBatchPath,
		TTSPath:                    raw.TTSPath,
		TranscribePath:             raw.TranscribePath,
		JobTitle:                   raw.JobTitle,
		JobDesc:                    raw.JobDesc,
		InterviewType:              raw.InterviewType,
		Voice:                      raw.Voice,
		TTSModel:                   raw.TTSModel,
		SpeechSpeed:                raw.SpeechSpeed,
		SessionID:                  sessionID,
		WelcomeMessage:             welcome,
		StrictMultipart:            raw.StrictMultipart,
		AutoPlay:                   raw.AutoPlay,
		HTTPTimeout:                raw.HTTPTimeout,
		MaxRetries:                 raw.MaxRetries,
		RetryDelay:                 raw.RetryDelay,
		ReconnectDelay:             raw.ReconnectDelay,
		DialTimeout:                raw.DialTimeout,
		AppendRetryDelay:           raw.AppendRetryDelay,
		AppendMaxAttempts:          raw.AppendMaxAttempts,
		AudioOutput:                raw.AudioOutput,
		AudioDumpPath:              raw.AudioDumpPath,
		AudioSampleRate:            raw.AudioSampleRate,
		AudioMaxPendingBytes:       raw.AudioMaxPendingBytes,
		Transcriber:                raw.Transcriber,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		MetricsAddr:                raw.MetricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
