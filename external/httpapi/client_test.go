package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/foxseedlab/mensetsu/internal/frame"
	"github.com/foxseedlab/mensetsu/internal/multipart"
)

var testAudio = []byte{0xff, 0xfb, 0x90, 0x64, 0x00, 0x0d, 0x0a, 0x2d, 0x2d}

func writeMultipart(w http.ResponseWriter, boundary string, meta []byte, audio []byte) {
	var body bytes.Buffer
	body.WriteString("--" + boundary + "\r\nContent-Type: application/json\r\n\r\n")
	body.Write(meta)
	body.WriteString("\r\n--" + boundary + "\r\nContent-Type: audio/mpeg\r\nContent-Disposition: attachment; filename=\"speech.mp3\"\r\n\r\n")
	body.Write(audio)
	body.WriteString("\r\n--" + boundary + "--\r\n")
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	_, _ = w.Write(body.Bytes())
}

func newTestClient(server *httptest.Server, opts multipart.Options) *Client {
	return NewClient(Endpoints{
		Multipart: server.URL + "/api/rag-tts-multipart",
		Headers:   server.URL + "/api/rag-tts",
		Speech:    server.URL + "/api/tts",
	}, 5*time.Second, opts).(*Client)
}

func TestExchange_Multipart(t *testing.T) {
	var got frame.TurnRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/rag-tts-multipart" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		meta := []byte(`{"ai_response":"Tell me about a failure.","feedback":{"clarity":"good"},"suggested_improvements":["Quantify impact"],"score":7}`)
		writeMultipart(w, "BOUNDARY-1234", meta, testAudio)
	}))
	defer server.Close()

	client := newTestClient(server, multipart.Options{ValidateContentTypes: true})
	result, err := client.Exchange(context.Background(), frame.TurnRequest{UserInput: "hello", JobTitle: "SRE", Voice: "alloy", TTSModel: "tts-1"})
	if err != nil {
		t.Fatalf("unexpected exchange error: %v", err)
	}
	if got.UserInput != "hello" || got.JobTitle != "SRE" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if result.Reply.AIResponse != "Tell me about a failure." {
		t.Fatalf("unexpected reply: %q", result.Reply.AIResponse)
	}
	if result.Reply.Feedback["clarity"] != "good" || len(result.Reply.SuggestedImprovements) != 1 {
		t.Fatalf("unexpected feedback: %+v", result.Reply)
	}
	if result.Reply.Score == nil || *result.Reply.Score != 7 {
		t.Fatalf("unexpected score: %v", result.Reply.Score)
	}
	if !bytes.Equal(result.Audio, testAudio) {
		t.Fatalf("unexpected audio: %v", result.Audio)
	}
}

func TestExchange_MissingBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(testAudio)
	}))
	defer server.Close()

	_, err := newTestClient(server, multipart.Options{}).Exchange(context.Background(), frame.TurnRequest{UserInput: "hi"})
	if !errors.Is(err, multipart.ErrNoBoundary) {
		t.Fatalf("expected ErrNoBoundary, got %v", err)
	}
}

func TestExchangeWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rag-tts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("X-RAG-Text", url.PathEscape("Why this role?"))
		w.Header().Set("X-RAG-Feedback", url.PathEscape(`{"structure":"clear"}`))
		w.Header().Set("X-RAG-Improvements", url.PathEscape(`["Be concise"]`))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(testAudio)
	}))
	defer server.Close()

	result, err := newTestClient(server, multipart.Options{}).ExchangeWithHeaders(context.Background(), frame.TurnRequest{UserInput: "hi"})
	if err != nil {
		t.Fatalf("unexpected exchange error: %v", err)
	}
	if result.Reply.AIResponse != "Why this role?" {
		t.Fatalf("unexpected reply: %q", result.Reply.AIResponse)
	}
	if result.Reply.Feedback["structure"] != "clear" {
		t.Fatalf("unexpected feedback: %v", result.Reply.Feedback)
	}
	if len(result.Reply.SuggestedImprovements) != 1 || result.Reply.SuggestedImprovements[0] != "Be concise" {
		t.Fatalf("unexpected improvements: %v", result.Reply.SuggestedImprovements)
	}
	if !bytes.Equal(result.Audio, testAudio) {
		t.Fatalf("unexpected audio: %v", result.Audio)
	}
}

func TestSynthesize(t *testing.T) {
	var got frame.SpeechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write(testAudio)
	}))
	defer server.Close()

	audio, err := newTestClient(server, multipart.Options{}).Synthesize(context.Background(), frame.SpeechRequest{Text: "Hello", Voice: "nova", Speed: 1.25})
	if err != nil {
		t.Fatalf("unexpected synthesize error: %v", err)
	}
	if got.Text != "Hello" || got.Voice != "nova" || got.Speed != 1.25 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if !bytes.Equal(audio, testAudio) {
		t.Fatalf("unexpected audio: %v", audio)
	}
}

func TestPost_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"No user input provided"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := newTestClient(server, multipart.Options{}).Synthesize(context.Background(), frame.SpeechRequest{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
