// Package batch decodes single round-trip interview exchanges that return the
// reply metadata and its synthesized audio together.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/foxseedlab/mensetsu/internal/frame"
	"github.com/foxseedlab/mensetsu/internal/multipart"
)

const (
	HeaderReplyText    = "X-RAG-Text"
	HeaderFeedback     = "X-RAG-Feedback"
	HeaderImprovements = "X-RAG-Improvements"
)

type Result struct {
	Reply frame.Reply
	Audio []byte
}

type Client interface {
	// Exchange posts a turn and decodes the two-part multipart response.
	Exchange(ctx context.Context, req frame.TurnRequest) (Result, error)
	// ExchangeWithHeaders posts a turn whose reply travels in response headers
	// and whose body is the audio.
	ExchangeWithHeaders(ctx context.Context, req frame.TurnRequest) (Result, error)
	Synthesize(ctx context.Context, req frame.SpeechRequest) ([]byte, error)
}

func DecodeMultipart(contentType string, body []byte, opts multipart.Options) (Result, error) {
	boundary, err := multipart.BoundaryFromContentType(contentType)
	if err != nil {
		return Result{}, err
	}
	meta, audio, err := multipart.DecodeTwoPart(body, boundary, opts)
	if err != nil {
		return Result{}, err
	}
	reply, err := frame.DecodeReply(meta)
	if err != nil {
		return Result{}, fmt.Errorf("decode metadata part: %w", err)
	}
	return Result{Reply: reply, Audio: audio}, nil
}

// HeaderGetter is satisfied by http.Header.
type HeaderGetter interface {
	Get(key string) string
}

// DecodeHeaders reads the reply from URL-encoded response headers. Feedback
// and improvements that fail to decode are left empty.
func DecodeHeaders(h HeaderGetter, audio []byte) Result {
	var reply frame.Reply
	if text, err := url.PathUnescape(h.Get(HeaderReplyText)); err == nil {
		reply.AIResponse = text
	} else {
		reply.AIResponse = h.Get(HeaderReplyText)
	}

	if raw := h.Get(HeaderFeedback); raw != "" {
		var fb frame.Feedback
		if err := decodeHeaderJSON(raw, &fb); err != nil {
			slog.Warn("ignoring malformed feedback header", "error", err)
		} else {
			reply.Feedback = fb
		}
	}
	if raw := h.Get(HeaderImprovements); raw != "" {
		var improvements []string
		if err := decodeHeaderJSON(raw, &improvements); err != nil {
			slog.Warn("ignoring malformed improvements header", "error", err)
		} else {
			reply.SuggestedImprovements = improvements
		}
	}
	return Result{Reply: reply, Audio: audio}
}

func decodeHeaderJSON(raw string, v any) error {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(decoded), v)
}
