package session

import (
	"testing"

	"github.com/ruderlabs/ruder/pkg/chat"
)

func TestNew_Defaults(t *testing.T) {
	s := New("test-model")

	if s.Model != "test-model" {
		t.Errorf("Model = %q, want %q", s.Model, "test-model")
	}
	if s.System != DefaultSystem {
		t.Errorf("System = %q, want %q", s.System, DefaultSystem)
	}
	if s.Params == nil || s.Params.Temperature == nil || *s.Params.Temperature != 0.3 {
		t.Errorf("expected default temperature 0.3, got %+v", s.Params)
	}
	if !s.SaveMessages {
		t.Error("expected SaveMessages to default to true")
	}
	if s.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a non-zero session ID")
	}
}

func TestAddMessages_SessionPolicy(t *testing.T) {
	s := New("m")
	user := chat.Message{Role: chat.RoleUser, Content: "hi"}
	assistant := chat.Message{Role: chat.RoleAssistant, Content: "hello"}

	s.AddMessages(user, assistant, nil)
	if len(s.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.Messages))
	}
	if s.Messages[0].Content != "hi" || s.Messages[1].Content != "hello" {
		t.Errorf("unexpected history: %+v", s.Messages)
	}
}

func TestAddMessages_ExplicitFlagOverridesPolicy(t *testing.T) {
	s := New("m")
	off := false
	s.AddMessages(chat.Message{Role: chat.RoleUser}, chat.Message{Role: chat.RoleAssistant}, &off)
	if len(s.Messages) != 0 {
		t.Errorf("expected no messages with save=false, got %d", len(s.Messages))
	}

	s.SaveMessages = false
	on := true
	s.AddMessages(chat.Message{Role: chat.RoleUser}, chat.Message{Role: chat.RoleAssistant}, &on)
	if len(s.Messages) != 2 {
		t.Errorf("expected 2 messages with save=true, got %d", len(s.Messages))
	}
}

func TestFormatInputMessages_Order(t *testing.T) {
	s := New("m")
	s.Messages = []chat.Message{
		{Role: chat.RoleUser, Content: "earlier question"},
		{Role: chat.RoleAssistant, Content: "earlier answer"},
	}

	system := chat.Message{Role: chat.RoleSystem, Content: "sys"}
	user := chat.Message{Role: chat.RoleUser, Content: "new question"}

	msgs := s.FormatInputMessages(system, user)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleSystem {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history out of order: %+v", msgs)
	}
	if msgs[3].Content != "new question" {
		t.Errorf("last message = %q, want the new user message", msgs[3].Content)
	}
}

func TestAddUsage_Accumulates(t *testing.T) {
	s := New("m")
	s.AddUsage(chat.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	s.AddUsage(chat.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})

	got := s.Totals()
	want := chat.Usage{PromptTokens: 13, CompletionTokens: 7, TotalTokens: 20}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}
}
