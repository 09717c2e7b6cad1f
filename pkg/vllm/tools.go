package vllm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruderlabs/ruder/pkg/chat"
	"github.com/ruderlabs/ruder/pkg/debug"
	"github.com/ruderlabs/ruder/pkg/observability"
	"github.com/ruderlabs/ruder/pkg/session"
)

// NoToolSentinel is the reserved selection answer meaning "no tool applies".
// Tool names must not collide with it.
const NoToolSentinel = "no-function"

// toolPromptTemplate asks the model to pick one tool by name. The choice is
// enforced with guided_choice, so the instruction only has to steer, not
// constrain.
const toolPromptTemplate = `From the list of tools below, reply ONLY with the name of the tool appropriate in response to the user's last message. If no tool is appropriate, reply with "no-function".

%s`

// contextSystemSuffix is appended to the system prompt for the second
// generation so the model grounds its answer in the tool output.
const contextSystemSuffix = "\n\nYou MUST use information from the context in your response."

// Tool is one callable capability offered to the orchestrator. Run receives
// the user's original prompt and returns context text for the grounded
// second generation.
type Tool struct {
	Name string
	Run  func(ctx context.Context, prompt string) (*ToolOutput, error)
}

// ToolOutput is what a tool produces for the follow-up generation.
type ToolOutput struct {
	// Context is the text injected into the second generation's prompt.
	Context string
}

// Text wraps plain text as a tool output.
func Text(s string) *ToolOutput {
	return &ToolOutput{Context: s}
}

// ToolResult is the outcome of a tool-augmented generation.
type ToolResult struct {
	// Context is the tool output the response was grounded in. Empty when
	// no tool was used.
	Context string `json:"context,omitempty"`

	// Tool is the name of the tool that ran. Empty when no tool was used.
	Tool string `json:"tool,omitempty"`

	// Response is the final assistant text.
	Response string `json:"response"`
}

// GenWithTools runs the two-phase tool protocol: a deterministic selection
// pass constrained to the tool names (plus the no-tool sentinel), then, if a
// tool was chosen, the tool call followed by a second generation grounded in
// its output.
//
// The prompt must be a plain string. Neither the selection exchange nor the
// rewritten grounding prompt is persisted; on success the session history
// records the original prompt paired with the final response, subject to the
// persistence flag in opts.
func (c *Client) GenWithTools(ctx context.Context, sess *session.Session, prompt string, tools []Tool, opts *GenOptions) (*ToolResult, error) {
	opts = opts.normalize()
	if len(tools) == 0 {
		return nil, chat.NewToolSelectionError("no tools provided")
	}

	byName := make(map[string]Tool, len(tools))
	names := make([]string, 0, len(tools)+1)
	for _, t := range tools {
		if t.Name == NoToolSentinel {
			return nil, chat.NewToolSelectionError(
				fmt.Sprintf("tool name %q collides with the no-tool sentinel", t.Name))
		}
		if _, dup := byName[t.Name]; dup {
			return nil, chat.NewToolSelectionError(fmt.Sprintf("duplicate tool name %q", t.Name))
		}
		byName[t.Name] = t
		names = append(names, t.Name)
	}
	names = append(names, NoToolSentinel)

	selected, err := c.selectTool(ctx, sess, prompt, names)
	if err != nil {
		return nil, err
	}

	if selected == NoToolSentinel {
		observability.ToolSelectionsTotal.WithLabelValues("", "none").Inc()
		response, err := c.Gen(ctx, sess, prompt, opts)
		if err != nil {
			return nil, err
		}
		return &ToolResult{Response: response}, nil
	}

	tool, ok := byName[selected]
	if !ok {
		observability.ToolSelectionsTotal.WithLabelValues(selected, "invalid").Inc()
		return nil, chat.NewToolSelectionError(
			fmt.Sprintf("backend selected unknown tool %q", selected))
	}
	observability.ToolSelectionsTotal.WithLabelValues(selected, "selected").Inc()

	debug.Log("tools", "tool selected", "tool", selected, "session", sess.ID.String())

	output, err := tool.Run(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("running tool %s: %w", selected, err)
	}
	if output == nil {
		output = &ToolOutput{}
	}

	response, err := c.genGrounded(ctx, sess, prompt, output.Context, opts)
	if err != nil {
		return nil, err
	}

	// Persist the exchange as the user actually had it: the original
	// prompt, not the context-rewritten one.
	userMsg := chat.Message{Role: chat.RoleUser, Content: prompt}
	assistant := chat.Message{Role: chat.RoleAssistant, Content: response}
	sess.AddMessages(userMsg, assistant, opts.SaveMessages)

	return &ToolResult{Context: output.Context, Tool: selected, Response: response}, nil
}

// selectTool runs the deterministic selection pass. The exchange is never
// persisted and contributes usage like any other call.
func (c *Client) selectTool(ctx context.Context, sess *session.Session, prompt string, names []string) (string, error) {
	zero := 0.0
	noSave := false
	selOpts := &GenOptions{
		System: fmt.Sprintf(toolPromptTemplate, strings.Join(names[:len(names)-1], "\n")),
		Params: &chat.GenParams{
			Temperature:  &zero,
			GuidedChoice: names,
		},
		SaveMessages: &noSave,
	}

	selected, err := c.Gen(ctx, sess, prompt, selOpts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(selected), nil
}

// genGrounded runs the second generation with the tool output injected as
// context. The rewritten prompt is not persisted here; the caller records
// the original exchange.
func (c *Client) genGrounded(ctx context.Context, sess *session.Session, prompt, toolContext string, opts *GenOptions) (string, error) {
	systemText := opts.System
	if systemText == "" {
		systemText = sess.System
	}

	noSave := false
	groundedOpts := &GenOptions{
		System:       systemText + contextSystemSuffix,
		Params:       opts.Params,
		SaveMessages: &noSave,
	}
	grounded := fmt.Sprintf("Context: %s\n\nUser: %s", toolContext, prompt)

	return c.Gen(ctx, sess, grounded, groundedOpts)
}
