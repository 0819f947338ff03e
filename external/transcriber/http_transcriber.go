package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/foxseedlab/mensetsu/internal/transcriber"
)

const defaultRecordingFilename = "answer.wav"

type HTTPTranscriber struct {
	endpoint string
	client   *http.Client
}

func NewHTTPTranscriber(endpoint string, timeout time.Duration) transcriber.Transcriber {
	return &HTTPTranscriber{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// Transcribe uploads the recording as the "file" form field.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, sessionID string, rec transcriber.Recording) (string, error) {
	body, contentType, err := buildUploadBody(rec)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	slog.Debug("uploading recording for transcription", "session_id", sessionID, "bytes", len(rec.Data))
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("transcribe endpoint returned status %d", resp.StatusCode)
	}

	var decoded transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode transcribe response: %w", err)
	}
	return decoded.Transcript, nil
}

func buildUploadBody(rec transcriber.Recording) (*bytes.Buffer, string, error) {
	filename := rec.Filename
	if filename == "" {
		filename = defaultRecordingFilename
	}
	contentType := rec.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(rec.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}
