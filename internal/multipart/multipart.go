// Package multipart splits the two-part batch response body (metadata followed
// by audio) by scanning for the boundary delimiter in the raw bytes.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoBoundary = errors.New("content type has no boundary")
	ErrPartCount  = errors.New("multipart body has fewer than two parts")
	ErrPartType   = errors.New("multipart part has unexpected content type")
)

var headerTerminator = []byte("\r\n\r\n")

// Part is one delimited section of the body. Header is the raw header block
// without its terminator.
type Part struct {
	Header []byte
	Body   []byte
}

// ContentType returns the part's declared Content-Type, or "" when absent.
func (p Part) ContentType() string {
	for _, line := range strings.Split(string(p.Header), "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Type") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// BoundaryFromContentType extracts the token after "boundary=".
func BoundaryFromContentType(contentType string) (string, error) {
	_, rest, ok := strings.Cut(contentType, "boundary=")
	if !ok {
		return "", ErrNoBoundary
	}
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		rest = rest[:i]
	}
	boundary := strings.Trim(strings.TrimSpace(rest), `"`)
	if boundary == "" {
		return "", ErrNoBoundary
	}
	return boundary, nil
}

// Split returns the parts of body in the order found. A part's payload ends two
// bytes before the next delimiter, or two bytes before the end of the buffer
// when no delimiter follows. The closing delimiter yields no part.
func Split(body []byte, boundary string) []Part {
	sep := []byte("--" + boundary)
	var parts []Part
	pos := 0
	for {
		i := bytes.Index(body[pos:], sep)
		if i < 0 {
			return parts
		}
		headerStart := pos + i + len(sep)
		h := bytes.Index(body[headerStart:], headerTerminator)
		if h < 0 {
			return parts
		}
		payloadStart := headerStart + h + len(headerTerminator)

		next := bytes.Index(body[payloadStart:], sep)
		payloadEnd := len(body) - 2
		if next >= 0 {
			payloadEnd = payloadStart + next - 2
		}
		if payloadEnd < payloadStart {
			payloadEnd = payloadStart
		}

		parts = append(parts, Part{
			Header: bytes.TrimLeft(body[headerStart:headerStart+h], "\r\n"),
			Body:   body[payloadStart:payloadEnd],
		})
		if next < 0 {
			return parts
		}
		pos = payloadStart + next
	}
}

type Options struct {
	// ValidateContentTypes rejects a body whose parts declare content types
	// other than JSON metadata followed by audio.
	ValidateContentTypes bool
}

// DecodeTwoPart returns the metadata and audio payloads of a batch response.
func DecodeTwoPart(body []byte, boundary string, opts Options) (meta, audio []byte, err error) {
	parts := Split(body, boundary)
	if len(parts) < 2 {
		return nil, nil, fmt.Errorf("%w: found %d", ErrPartCount, len(parts))
	}
	if opts.ValidateContentTypes {
		if err := checkContentType(parts[0], 0, "application/json"); err != nil {
			return nil, nil, err
		}
		if err := checkContentType(parts[1], 1, "audio/"); err != nil {
			return nil, nil, err
		}
	}
	return parts[0].Body, parts[1].Body, nil
}

func checkContentType(p Part, index int, wantPrefix string) error {
	ct := p.ContentType()
	if ct == "" {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(ct), wantPrefix) {
		return fmt.Errorf("%w: part %d is %q", ErrPartType, index, ct)
	}
	return nil
}
