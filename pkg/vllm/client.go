package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruderlabs/ruder/pkg/auth"
	"github.com/ruderlabs/ruder/pkg/chat"
	"github.com/ruderlabs/ruder/pkg/debug"
	"github.com/ruderlabs/ruder/pkg/observability"
	"github.com/ruderlabs/ruder/pkg/session"
)

// completionsPath is the Chat Completions endpoint path, appended to the
// configured base URL.
const completionsPath = "/v1/chat/completions"

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend base URL, e.g. "http://localhost:8000".
	// Required.
	BaseURL string

	// Tokens supplies bearer tokens for the Authorization header. Leave
	// nil for backends that require no authentication (local inference
	// servers typically don't).
	Tokens auth.TokenSource

	// Timeout applies to non-streamed calls. Default: 120s. Streaming
	// calls are bounded by context cancellation instead.
	Timeout time.Duration
}

// Client performs chat completion calls against a vLLM or OpenAI-compatible
// backend on behalf of a session.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vllm: BaseURL is required")
	}

	// Normalize: remove trailing slash from base URL.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Gen issues one non-streamed completion call and returns the assistant's
// text. The user and assistant messages are appended to the session history
// subject to the persistence flag, and the reported usage is added to the
// session totals.
//
// Gen serves text generations only; use GenStructured when an output
// schema constrains the response.
func (c *Client) Gen(ctx context.Context, sess *session.Session, prompt any, opts *GenOptions) (string, error) {
	opts = opts.normalize()
	if opts.OutputSchema != nil {
		return "", fmt.Errorf("vllm: Gen does not take an output schema, use GenStructured")
	}

	headers, payload, userMsg, err := c.PrepareRequest(sess, prompt, opts, false)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, raw, err := c.post(ctx, headers, payload)
	c.observe("gen", sess.Model, start, err)
	if err != nil {
		return "", err
	}

	assistant, usage, err := parseCompletion(resp, raw)
	if err != nil {
		return "", err
	}

	sess.AddMessages(userMsg, assistant, opts.SaveMessages)
	c.addUsage(sess, *usage)

	return assistant.Content, nil
}

// GenStructured issues one non-streamed completion call constrained by the
// output schema in opts and parses the guided JSON content into out.
// Structured exchanges are not appended to the session history, but their
// usage still counts toward the session totals.
func (c *Client) GenStructured(ctx context.Context, sess *session.Session, prompt any, out any, opts *GenOptions) error {
	opts = opts.normalize()
	if opts.OutputSchema == nil {
		return fmt.Errorf("vllm: GenStructured requires an output schema descriptor")
	}

	headers, payload, _, err := c.PrepareRequest(sess, prompt, opts, false)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, raw, err := c.post(ctx, headers, payload)
	c.observe("structured", sess.Model, start, err)
	if err != nil {
		return err
	}

	assistant, usage, err := parseCompletion(resp, raw)
	if err != nil {
		return err
	}

	// Guided decoding guarantees schema conformance server-side; content
	// that fails to parse means the backend ignored the constraint.
	if err := json.Unmarshal([]byte(assistant.Content), out); err != nil {
		return chat.NewMalformedResponseError(
			fmt.Sprintf("guided output is not valid JSON: %s", err), raw)
	}

	c.addUsage(sess, *usage)
	return nil
}

// post sends one non-streamed completion request and returns the decoded
// response along with the raw body for error reporting.
func (c *Client) post(ctx context.Context, headers http.Header, payload map[string]any) (*chatCompletionResponse, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header = headers

	debug.Log("client", "completion request", "url", url, "bytes", len(body))
	debug.Raw("client", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, chat.NewBackendError("backend connection error: "+err.Error(), nil)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, nil, mapHTTPError(httpResp)
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, chat.NewBackendError("reading backend response: "+err.Error(), nil)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, chat.NewMalformedResponseError("backend response is not valid JSON", raw)
	}

	return &resp, raw, nil
}

// parseCompletion extracts the assistant message and usage triple from a
// decoded response, surfacing a malformed-response error with the raw body
// when an expected key is absent.
func parseCompletion(resp *chatCompletionResponse, raw []byte) (chat.Message, *chat.Usage, error) {
	if len(resp.Choices) == 0 {
		return chat.Message{}, nil, chat.NewMalformedResponseError("no AI generation: response has no choices", raw)
	}
	choice := resp.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return chat.Message{}, nil, chat.NewMalformedResponseError("no AI generation: choice has no message content", raw)
	}
	if choice.FinishReason == nil {
		return chat.Message{}, nil, chat.NewMalformedResponseError("no AI generation: choice has no finish_reason", raw)
	}
	if resp.Usage == nil {
		return chat.Message{}, nil, chat.NewMalformedResponseError("no AI generation: response has no usage", raw)
	}

	assistant := chat.Message{
		Role:             choice.Message.Role,
		Content:          *choice.Message.Content,
		FinishReason:     *choice.FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return assistant, resp.Usage, nil
}

// addUsage records a response's usage on the session and in the token
// metrics.
func (c *Client) addUsage(sess *session.Session, usage chat.Usage) {
	sess.AddUsage(usage)
	observability.TokensTotal.WithLabelValues(sess.Model, "prompt").Add(float64(usage.PromptTokens))
	observability.TokensTotal.WithLabelValues(sess.Model, "completion").Add(float64(usage.CompletionTokens))
}

// observe records request count and latency for one completion call.
func (c *Client) observe(mode, model string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RequestsTotal.WithLabelValues(mode, model, status).Inc()
	observability.RequestDuration.WithLabelValues(mode, model).Observe(time.Since(start).Seconds())
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
