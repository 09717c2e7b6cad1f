package vllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/ruderlabs/ruder/pkg/chat"
)

// toolBackend fakes the two request shapes of the tool protocol: selection
// requests (guided_choice present) answer with selection, everything else
// answers with generate. All request payloads are captured in order.
type toolBackend struct {
	selection string
	generate  string
	requests  []map[string]any
}

func (b *toolBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		b.requests = append(b.requests, payload)

		content := b.generate
		if _, selecting := payload["guided_choice"]; selecting {
			content = b.selection
		}
		fmt.Fprint(w, completionBody(content, 5, 2))
	}
}

// lastUserContent extracts the content of the final message in a captured
// request payload.
func lastUserContent(t *testing.T, payload map[string]any) string {
	t.Helper()
	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) == 0 {
		t.Fatalf("payload has no messages: %v", payload)
	}
	last, ok := msgs[len(msgs)-1].(map[string]any)
	if !ok {
		t.Fatalf("unexpected message shape: %v", msgs[len(msgs)-1])
	}
	content, _ := last["content"].(string)
	return content
}

func TestGenWithTools_ToolSelected(t *testing.T) {
	backend := &toolBackend{selection: "weather", generate: "It will be sunny."}
	c, _ := newTestClient(t, backend.handler(t))
	sess := newTestSession(t)

	var toolPrompt string
	tools := []Tool{
		{Name: "weather", Run: func(ctx context.Context, prompt string) (*ToolOutput, error) {
			toolPrompt = prompt
			return Text("Oslo: sunny, 24C"), nil
		}},
		{Name: "calculator", Run: func(ctx context.Context, prompt string) (*ToolOutput, error) {
			t.Error("wrong tool invoked")
			return nil, nil
		}},
	}

	result, err := c.GenWithTools(context.Background(), sess, "What's the weather in Oslo?", tools, nil)
	if err != nil {
		t.Fatalf("GenWithTools failed: %v", err)
	}

	if result.Tool != "weather" {
		t.Errorf("tool = %q, want weather", result.Tool)
	}
	if result.Context != "Oslo: sunny, 24C" {
		t.Errorf("context = %q", result.Context)
	}
	if result.Response != "It will be sunny." {
		t.Errorf("response = %q", result.Response)
	}
	if toolPrompt != "What's the weather in Oslo?" {
		t.Errorf("tool received prompt %q, want the original user prompt", toolPrompt)
	}

	if len(backend.requests) != 2 {
		t.Fatalf("backend saw %d requests, want selection + grounded generation", len(backend.requests))
	}

	// Selection pass: deterministic, constrained to tool names plus the
	// no-tool sentinel.
	sel := backend.requests[0]
	if temp, _ := sel["temperature"].(float64); temp != 0 {
		t.Errorf("selection temperature = %v, want 0", sel["temperature"])
	}
	choices, ok := sel["guided_choice"].([]any)
	if !ok || len(choices) != 3 {
		t.Fatalf("selection guided_choice = %v, want two tools + sentinel", sel["guided_choice"])
	}
	if choices[len(choices)-1] != NoToolSentinel {
		t.Errorf("last choice = %v, want %q", choices[len(choices)-1], NoToolSentinel)
	}

	// Grounded pass: tool output injected as context, system prompt
	// instructs grounding.
	grounded := backend.requests[1]
	groundedUser := lastUserContent(t, grounded)
	if groundedUser != "Context: Oslo: sunny, 24C\n\nUser: What's the weather in Oslo?" {
		t.Errorf("grounded prompt = %q", groundedUser)
	}
	msgs := grounded["messages"].([]any)
	system := msgs[0].(map[string]any)["content"].(string)
	if !strings.Contains(system, "MUST use information from the context") {
		t.Errorf("grounded system prompt = %q", system)
	}

	// The history records the exchange as the user had it: the original
	// prompt, not the rewritten one, and no trace of the selection pass.
	if len(sess.Messages) != 2 {
		t.Fatalf("history has %d messages, want 2", len(sess.Messages))
	}
	if sess.Messages[0].Content != "What's the weather in Oslo?" {
		t.Errorf("persisted user message = %q", sess.Messages[0].Content)
	}
	if sess.Messages[1].Content != "It will be sunny." {
		t.Errorf("persisted assistant message = %q", sess.Messages[1].Content)
	}
}

func TestGenWithTools_NoToolSentinel(t *testing.T) {
	backend := &toolBackend{selection: NoToolSentinel, generate: "Just chatting."}
	c, _ := newTestClient(t, backend.handler(t))
	sess := newTestSession(t)

	tools := []Tool{
		{Name: "weather", Run: func(ctx context.Context, prompt string) (*ToolOutput, error) {
			t.Error("tool invoked despite no-tool selection")
			return nil, nil
		}},
	}

	result, err := c.GenWithTools(context.Background(), sess, "How are you?", tools, nil)
	if err != nil {
		t.Fatalf("GenWithTools failed: %v", err)
	}

	if result.Tool != "" || result.Context != "" {
		t.Errorf("result = %+v, want no tool fields", result)
	}
	if result.Response != "Just chatting." {
		t.Errorf("response = %q", result.Response)
	}

	if len(sess.Messages) != 2 {
		t.Fatalf("history has %d messages, want the plain exchange", len(sess.Messages))
	}
	if sess.Messages[0].Content != "How are you?" {
		t.Errorf("persisted user message = %q", sess.Messages[0].Content)
	}
}

func TestGenWithTools_UnknownSelection(t *testing.T) {
	backend := &toolBackend{selection: "bogus"}
	c, _ := newTestClient(t, backend.handler(t))
	sess := newTestSession(t)

	tools := []Tool{{Name: "weather", Run: func(ctx context.Context, prompt string) (*ToolOutput, error) {
		return Text("x"), nil
	}}}

	_, err := c.GenWithTools(context.Background(), sess, "q", tools, nil)
	var cerr *chat.Error
	if !errors.As(err, &cerr) || cerr.Type != chat.ErrorTypeToolSelection {
		t.Fatalf("got %v, want tool selection error", err)
	}
	if len(sess.Messages) != 0 {
		t.Error("failed tool call left messages in the history")
	}
}

func TestGenWithTools_ToolError(t *testing.T) {
	backend := &toolBackend{selection: "failing"}
	c, _ := newTestClient(t, backend.handler(t))
	sess := newTestSession(t)

	tools := []Tool{{Name: "failing", Run: func(ctx context.Context, prompt string) (*ToolOutput, error) {
		return nil, errors.New("upstream unavailable")
	}}}

	_, err := c.GenWithTools(context.Background(), sess, "q", tools, nil)
	if err == nil || !strings.Contains(err.Error(), "upstream unavailable") {
		t.Fatalf("got %v, want wrapped tool error", err)
	}
	if len(sess.Messages) != 0 {
		t.Error("failed tool call left messages in the history")
	}
}

func TestGenWithTools_Validation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	sess := newTestSession(t)

	run := func(ctx context.Context, prompt string) (*ToolOutput, error) { return Text("x"), nil }

	cases := []struct {
		name  string
		tools []Tool
	}{
		{"empty tool list", nil},
		{"sentinel collision", []Tool{{Name: NoToolSentinel, Run: run}}},
		{"duplicate names", []Tool{{Name: "a", Run: run}, {Name: "a", Run: run}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.GenWithTools(context.Background(), sess, "q", tc.tools, nil)
			var cerr *chat.Error
			if !errors.As(err, &cerr) || cerr.Type != chat.ErrorTypeToolSelection {
				t.Fatalf("got %v, want tool selection error", err)
			}
		})
	}
}
