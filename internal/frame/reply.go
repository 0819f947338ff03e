package frame

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	replySchemaURL     = "https://mensetsu.local/schema/reply.json"
	overallFeedbackKey = "overall"
)

//go:embed reply.schema.json
var replySchemaJSON []byte

var (
	replySchemaOnce sync.Once
	replySchema     *jsonschema.Schema
	replySchemaErr  error
)

type Reply struct {
	AIResponse            string   `json:"ai_response"`
	Feedback              Feedback `json:"feedback,omitempty"`
	SuggestedImprovements []string `json:"suggested_improvements,omitempty"`
	Score                 *float64 `json:"score,omitempty"`
}

// Feedback maps a category name to a comment. The server sends either an
// object or a single string, which is stored under "overall".
type Feedback map[string]string

func (f *Feedback) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*f = nil
			return nil
		}
		*f = Feedback{overallFeedbackKey: s}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feedback must be an object or a string: %w", err)
	}
	out := make(Feedback, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(bytes.TrimSpace(v))
	}
	*f = out
	return nil
}

// Categories returns the feedback keys in a stable order.
func (f Feedback) Categories() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeReply validates data against the reply schema and decodes it.
func DecodeReply(data []byte) (Reply, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrNotProtocol, err)
	}
	schema, err := compiledReplySchema()
	if err != nil {
		return Reply{}, err
	}
	if err := schema.Validate(payload); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrNotProtocol, err)
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrNotProtocol, err)
	}
	return reply, nil
}

func compiledReplySchema() (*jsonschema.Schema, error) {
	replySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(replySchemaURL, bytes.NewReader(replySchemaJSON)); err != nil {
			replySchemaErr = fmt.Errorf("add reply schema resource: %w", err)
			return
		}
		replySchema, replySchemaErr = compiler.Compile(replySchemaURL)
		if replySchemaErr != nil {
			replySchemaErr = fmt.Errorf("compile reply schema: %w", replySchemaErr)
		}
	})
	return replySchema, replySchemaErr
}
