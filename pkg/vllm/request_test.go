package vllm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ruderlabs/ruder/pkg/auth"
	"github.com/ruderlabs/ruder/pkg/chat"
	"github.com/ruderlabs/ruder/pkg/schema"
	"github.com/ruderlabs/ruder/pkg/session"
)

type cityQuery struct {
	City string `json:"city"`
}

type forecast struct {
	Summary string `json:"summary"`
	High    int    `json:"high"`
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	return session.New("test-model")
}

func TestPrepareRequest_Defaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	sess := newTestSession(t)

	headers, payload, userMsg, err := c.PrepareRequest(sess, "hello", nil, false)
	if err != nil {
		t.Fatalf("PrepareRequest failed: %v", err)
	}

	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := headers.Get("Authorization"); got != "" {
		t.Errorf("unexpected Authorization header %q without token source", got)
	}

	if payload["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", payload["model"])
	}
	if payload["stream"] != false {
		t.Errorf("stream = %v, want false", payload["stream"])
	}
	if _, present := payload["guided_json"]; present {
		t.Error("guided_json present without any schema descriptor")
	}
	if _, present := payload["guided_choice"]; present {
		t.Error("guided_choice present without selection params")
	}

	msgs, ok := payload["messages"].([]wireMessage)
	if !ok {
		t.Fatalf("messages has type %T", payload["messages"])
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want system + user", len(msgs))
	}
	if msgs[0].Role != chat.RoleSystem || msgs[0].Content != session.DefaultSystem {
		t.Errorf("first message = %+v, want default system prompt", msgs[0])
	}
	if msgs[1].Role != chat.RoleUser || msgs[1].Content != "hello" {
		t.Errorf("second message = %+v, want user prompt", msgs[1])
	}

	if userMsg.Content != "hello" || userMsg.Role != chat.RoleUser {
		t.Errorf("user message = %+v", userMsg)
	}
}

func TestPrepareRequest_BearerToken(t *testing.T) {
	c, err := New(Config{
		BaseURL: "http://localhost:8000",
		Tokens:  auth.StaticToken("secret-token"),
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	headers, _, _, err := c.PrepareRequest(newTestSession(t), "hi", nil, false)
	if err != nil {
		t.Fatalf("PrepareRequest failed: %v", err)
	}
	if got := headers.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", got)
	}
}

func TestPrepareRequest_CombinedGuidedJSON(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	sess := newTestSession(t)

	opts := &GenOptions{
		InputSchema:  schema.MustFor[cityQuery](),
		OutputSchema: schema.MustFor[forecast](),
	}
	_, payload, userMsg, err := c.PrepareRequest(sess, cityQuery{City: "Oslo"}, opts, false)
	if err != nil {
		t.Fatalf("PrepareRequest failed: %v", err)
	}

	guided, ok := payload["guided_json"].(map[string]json.RawMessage)
	if !ok {
		t.Fatalf("guided_json has type %T", payload["guided_json"])
	}
	if _, present := guided["input"]; !present {
		t.Error("guided_json missing input schema")
	}
	if _, present := guided["output"]; !present {
		t.Error("guided_json missing output schema")
	}

	if userMsg.Name != "cityQuery" {
		t.Errorf("user message name = %q, want cityQuery", userMsg.Name)
	}
	if userMsg.Content != `{"city":"Oslo"}` {
		t.Errorf("user message content = %q", userMsg.Content)
	}
}

func TestPrepareRequest_OutputSchemaOnly(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	opts := &GenOptions{OutputSchema: schema.MustFor[forecast]()}
	_, payload, _, err := c.PrepareRequest(newTestSession(t), "forecast for Oslo", opts, false)
	if err != nil {
		t.Fatalf("PrepareRequest failed: %v", err)
	}

	guided, ok := payload["guided_json"].(map[string]json.RawMessage)
	if !ok {
		t.Fatalf("guided_json has type %T", payload["guided_json"])
	}
	if _, present := guided["input"]; present {
		t.Error("guided_json carries input key without an input schema")
	}
	if _, present := guided["output"]; !present {
		t.Error("guided_json missing output schema")
	}
}

func TestPrepareRequest_DoesNotMutateSessionDefaults(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8000"})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	sess := newTestSession(t)

	opts := &GenOptions{OutputSchema: schema.MustFor[forecast]()}
	if _, _, _, err := c.PrepareRequest(sess, "q", opts, false); err != nil {
		t.Fatalf("PrepareRequest failed: %v", err)
	}

	if sess.Params.GuidedJSON != nil {
		t.Error("guided_json injection leaked into the session's default params")
	}

	// A second schema-free call must not inherit the constraint either.
	_, payload, _, err := c.PrepareRequest(sess, "q2", nil, false)
	if err != nil {
		t.Fatalf("second PrepareRequest failed: %v", err)
	}
	if _, present := payload["guided_json"]; present {
		t.Error("guided_json carried over to a schema-free request")
	}
}

func TestBuildUserMessage_TypeMismatch(t *testing.T) {
	// Non-string prompt without an input schema.
	_, err := buildUserMessage(42, nil)
	var cerr *chat.Error
	if !errors.As(err, &cerr) || cerr.Type != chat.ErrorTypeTypeMismatch {
		t.Fatalf("got %v, want type mismatch error", err)
	}

	// Prompt that is not an instance of the declared input type.
	_, err = buildUserMessage("plain text", schema.MustFor[cityQuery]())
	if !errors.As(err, &cerr) || cerr.Type != chat.ErrorTypeTypeMismatch {
		t.Fatalf("got %v, want type mismatch error", err)
	}
}

func TestApplyParams(t *testing.T) {
	temp := 0.7
	topP := 0.9
	maxTokens := 256
	p := &chat.GenParams{
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
		Extra: map[string]any{
			"presence_penalty": 1.5,
			"model":            "evil-override",
			"messages":         "evil-override",
			"stream":           true,
		},
	}

	payload := map[string]any{"model": "m", "messages": nil, "stream": false}
	applyParams(payload, p)

	if payload["temperature"] != 0.7 || payload["top_p"] != 0.9 || payload["max_tokens"] != 256 {
		t.Errorf("sampling params not flattened: %v", payload)
	}
	if payload["presence_penalty"] != 1.5 {
		t.Errorf("extra param not applied: %v", payload["presence_penalty"])
	}
	if payload["model"] != "m" || payload["stream"] != false {
		t.Error("reserved payload keys overridden through Extra")
	}
}
