package frame

import "encoding/json"

// TurnRequest is the structured message sent for one user turn.
type TurnRequest struct {
	UserInput     string `json:"user_input"`
	JobTitle      string `json:"job_title"`
	JobDesc       string `json:"job_desc"`
	Voice         string `json:"voice"`
	TTSModel      string `json:"tts_model"`
	SessionID     string `json:"session_id,omitempty"`
	InterviewType string `json:"interview_type,omitempty"`
}

type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

func EncodeTurn(req TurnRequest) ([]byte, error) {
	return json.Marshal(req)
}

func EncodeSpeech(req SpeechRequest) ([]byte, error) {
	return json.Marshal(req)
}
