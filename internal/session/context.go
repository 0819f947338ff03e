package session

import "github.com/foxseedlab/mensetsu/internal/config"

// Context is the per-session interview setup sent with every turn.
type Context struct {
	SessionID     string
	JobTitle      string
	JobDesc       string
	InterviewType string
	Voice         string
	TTSModel      string
	SpeechSpeed   float64
}

func NewContext(cfg *config.Config) Context {
	return Context{
		SessionID:     cfg.SessionID,
		JobTitle:      cfg.JobTitle,
		JobDesc:       cfg.JobDesc,
		InterviewType: cfg.InterviewType,
		Voice:         cfg.Voice,
		TTSModel:      cfg.TTSModel,
		SpeechSpeed:   cfg.SpeechSpeed,
	}
}
