package chat

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message. Messages are immutable by
// convention: once appended to a session's history they are never modified.
//
// Only Role, Content, and Name travel on the wire; FinishReason and the
// token counts are response bookkeeping attached to assistant messages.
type Message struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	Name             string `json:"name,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
}

// Usage holds the token usage triple reported by a non-streamed completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenParams holds generation parameters for a single completion call.
// Well-known vLLM options get explicit fields; anything else goes into
// Extra and is flattened into the request body as-is.
//
// Callers hand GenParams to the client by reference; the client clones the
// effective parameter set before injecting guided_json or guided_choice,
// so a session's shared defaults are never mutated across calls.
type GenParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// GuidedChoice restricts the model's output to exactly one of the
	// listed strings (vLLM guided decoding).
	GuidedChoice []string `json:"guided_choice,omitempty"`

	// GuidedJSON constrains the model's output to a JSON schema. The value
	// must be JSON-serializable (a schema document or a map of them).
	GuidedJSON any `json:"guided_json,omitempty"`

	// Extra holds server-specific options that don't map to a named field.
	Extra map[string]any `json:"-"`
}

// Clone returns a copy of p that can be modified without affecting the
// original. Slice and map containers are copied; pointer fields keep
// pointing at the same values since the client never writes through them.
// Clone of nil returns an empty GenParams.
func (p *GenParams) Clone() *GenParams {
	if p == nil {
		return &GenParams{}
	}
	out := &GenParams{
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
		GuidedJSON:  p.GuidedJSON,
	}
	if p.GuidedChoice != nil {
		out.GuidedChoice = append([]string(nil), p.GuidedChoice...)
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
