package vllm

import "github.com/ruderlabs/ruder/pkg/chat"

// Chat Completions wire types. Response fields the executor depends on are
// pointers so a missing key is distinguishable from a zero value.

// wireMessage is a chat message restricted to the fields the backend
// accepts as input.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// chatCompletionResponse is the non-streamed response body.
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chat.Usage  `json:"usage"`
}

// chatChoice is one completion choice.
type chatChoice struct {
	Index        int              `json:"index"`
	Message      *responseMessage `json:"message"`
	FinishReason *string          `json:"finish_reason"`
}

// responseMessage is the assistant message inside a choice.
type responseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// chatCompletionChunk is a single SSE chunk in a streamed response.
type chatCompletionChunk struct {
	Choices []chunkChoice `json:"choices"`
}

// chunkChoice is a streamed choice delta.
type chunkChoice struct {
	Index int        `json:"index"`
	Delta chunkDelta `json:"delta"`
}

// chunkDelta holds incremental content in a streamed chunk.
type chunkDelta struct {
	Content *string `json:"content,omitempty"`
}

// chatErrorResponse is the error format returned by Chat Completions
// backends.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
