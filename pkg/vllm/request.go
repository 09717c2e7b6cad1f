package vllm

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ruderlabs/ruder/pkg/chat"
	"github.com/ruderlabs/ruder/pkg/schema"
	"github.com/ruderlabs/ruder/pkg/session"
)

// GenOptions carries the per-call overrides for a completion.
// The zero value (or a nil pointer) means: session defaults throughout.
type GenOptions struct {
	// System overrides the session's default system prompt.
	System string

	// Params overrides the session's default generation parameters.
	Params *chat.GenParams

	// SaveMessages overrides the session-wide persistence policy. Nil
	// defers to the session.
	SaveMessages *bool

	// InputSchema declares the prompt as a typed input object. The prompt
	// must be an instance of the described type and is serialized to its
	// canonical JSON text, with the type's name recorded on the message.
	InputSchema schema.Descriptor

	// OutputSchema constrains the completion to a JSON schema via guided
	// decoding. Only GenStructured honors it.
	OutputSchema schema.Descriptor
}

// normalize returns opts or an empty GenOptions for a nil pointer.
func (o *GenOptions) normalize() *GenOptions {
	if o == nil {
		return &GenOptions{}
	}
	return o
}

// PrepareRequest assembles one completion request: the HTTP headers, the
// JSON-serializable payload, and the user message to persist (not yet
// appended to history).
//
// The effective generation parameters are the per-call override or the
// session defaults, always cloned before guided_json injection so that
// shared defaults are never mutated across calls. When either schema is
// present, a single combined {"input": ..., "output": ...} guided_json
// constraint is injected, omitting absent keys.
func (c *Client) PrepareRequest(sess *session.Session, prompt any, opts *GenOptions, stream bool) (http.Header, map[string]any, chat.Message, error) {
	opts = opts.normalize()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if c.cfg.Tokens != nil {
		token, err := c.cfg.Tokens.Token()
		if err != nil {
			return nil, nil, chat.Message{}, fmt.Errorf("obtaining bearer token: %w", err)
		}
		if token != "" {
			headers.Set("Authorization", "Bearer "+token)
		}
	}

	systemText := opts.System
	if systemText == "" {
		systemText = sess.System
	}
	systemMsg := chat.Message{Role: chat.RoleSystem, Content: systemText}

	userMsg, err := buildUserMessage(prompt, opts.InputSchema)
	if err != nil {
		return nil, nil, chat.Message{}, err
	}

	base := opts.Params
	if base == nil {
		base = sess.Params
	}
	params := base.Clone()

	if opts.InputSchema != nil || opts.OutputSchema != nil {
		guided, err := guidedJSON(opts.InputSchema, opts.OutputSchema)
		if err != nil {
			return nil, nil, chat.Message{}, err
		}
		params.GuidedJSON = guided
	}

	payload := map[string]any{
		"model":    sess.Model,
		"messages": toWireMessages(sess.FormatInputMessages(systemMsg, userMsg)),
		"stream":   stream,
	}
	applyParams(payload, params)

	return headers, payload, userMsg, nil
}

// buildUserMessage turns the prompt into the user message. With an input
// schema the prompt must be an instance of the declared type; without one
// it must be a plain string used verbatim.
func buildUserMessage(prompt any, input schema.Descriptor) (chat.Message, error) {
	if input != nil {
		if !input.Matches(prompt) {
			return chat.Message{}, chat.NewTypeMismatchError(
				fmt.Sprintf("prompt must be an instance of %s", input.Name()))
		}
		content, err := input.MarshalText(prompt)
		if err != nil {
			return chat.Message{}, fmt.Errorf("serializing prompt: %w", err)
		}
		return chat.Message{Role: chat.RoleUser, Content: content, Name: input.Name()}, nil
	}

	text, ok := prompt.(string)
	if !ok {
		return chat.Message{}, chat.NewTypeMismatchError(
			fmt.Sprintf("prompt must be a string when no input schema is declared, got %T", prompt))
	}
	return chat.Message{Role: chat.RoleUser, Content: text}, nil
}

// guidedJSON builds the combined guided_json constraint from the present
// schema descriptors.
func guidedJSON(input, output schema.Descriptor) (map[string]json.RawMessage, error) {
	guided := make(map[string]json.RawMessage, 2)
	if input != nil {
		doc, err := input.JSONSchema()
		if err != nil {
			return nil, fmt.Errorf("input schema for %s: %w", input.Name(), err)
		}
		guided["input"] = doc
	}
	if output != nil {
		doc, err := output.JSONSchema()
		if err != nil {
			return nil, fmt.Errorf("output schema for %s: %w", output.Name(), err)
		}
		guided["output"] = doc
	}
	return guided, nil
}

// toWireMessages restricts messages to the backend's recognized input
// fields (role, content, name).
func toWireMessages(msgs []chat.Message) []wireMessage {
	wire := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = wireMessage{Role: m.Role, Content: m.Content, Name: m.Name}
	}
	return wire
}

// applyParams flattens generation parameters into the top level of the
// request payload, the way the Chat Completions API expects them.
func applyParams(payload map[string]any, p *chat.GenParams) {
	for k, v := range p.Extra {
		// Reserved payload keys cannot be overridden through Extra.
		if k == "model" || k == "messages" || k == "stream" {
			continue
		}
		payload[k] = v
	}
	if p.Temperature != nil {
		payload["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		payload["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		payload["max_tokens"] = *p.MaxTokens
	}
	if len(p.GuidedChoice) > 0 {
		payload["guided_choice"] = p.GuidedChoice
	}
	if p.GuidedJSON != nil {
		payload["guided_json"] = p.GuidedJSON
	}
}
