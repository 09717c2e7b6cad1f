package vllm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ruderlabs/ruder/pkg/chat"
	"github.com/ruderlabs/ruder/pkg/debug"
	"github.com/ruderlabs/ruder/pkg/observability"
	"github.com/ruderlabs/ruder/pkg/session"
)

// sseDataPrefix is the 6-character marker in front of every SSE payload.
const sseDataPrefix = "data: "

// sseDoneSentinel terminates a streamed response.
const sseDoneSentinel = "[DONE]"

// StreamEvent is one incremental update from a streamed completion.
type StreamEvent struct {
	// Delta is the new text in this event.
	Delta string

	// Response is the full text accumulated so far, including Delta.
	Response string

	// Err is set on the final event when the stream failed mid-read.
	Err error
}

// Stream issues one streamed completion call and returns a channel of
// delta events. The channel is closed when the stream completes, errors,
// or ctx is cancelled; the underlying connection is released on every
// exit path.
//
// After clean termination the assistant message is finalized from the
// accumulated text and the user/assistant pair is appended to the session
// history, subject to the persistence flag. Callers must drain the channel
// before reusing the session. Streamed frames carry no usage block, so the
// session totals are not updated.
func (c *Client) Stream(ctx context.Context, sess *session.Session, prompt any, opts *GenOptions) (<-chan StreamEvent, error) {
	opts = opts.normalize()

	headers, payload, userMsg, err := c.PrepareRequest(sess, prompt, opts, true)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header = headers
	httpReq.Header.Set("Accept", "text/event-stream")

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		observability.RequestsTotal.WithLabelValues("stream", sess.Model, "error").Inc()
		return nil, chat.NewBackendError("backend connection error: "+err.Error(), nil)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		mapped := mapHTTPError(httpResp)
		httpResp.Body.Close()
		observability.RequestsTotal.WithLabelValues("stream", sess.Model, "error").Inc()
		return nil, mapped
	}

	observability.RequestsTotal.WithLabelValues("stream", sess.Model, "ok").Inc()
	observability.StreamsActive.Inc()

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		defer observability.StreamsActive.Dec()
		c.readStream(ctx, sess, httpResp.Body, userMsg, opts.SaveMessages, ch)
	}()

	return ch, nil
}

// readStream decodes SSE frames into delta events and finalizes the
// assistant message after clean termination.
func (c *Client) readStream(ctx context.Context, sess *session.Session, body io.Reader, userMsg chat.Message, save *bool, ch chan<- StreamEvent) {
	scanner := bufio.NewScanner(body)
	var content strings.Builder

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines without the data marker are ignored (empty keep-alive
		// lines, comments starting with ":").
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, sseDataPrefix)

		if payload == sseDoneSentinel {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == nil || *delta == "" {
			continue
		}

		content.WriteString(*delta)
		select {
		case ch <- StreamEvent{Delta: *delta, Response: content.String()}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective, and
		// an abandoned stream is not finalized.
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- StreamEvent{Err: chat.NewBackendError("stream read error: "+err.Error(), nil)}:
		case <-ctx.Done():
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	// Streamed frames carry no usage block, so unlike Gen this path leaves
	// the session totals untouched.
	assistant := chat.Message{Role: chat.RoleAssistant, Content: content.String()}
	sess.AddMessages(userMsg, assistant, save)

	debug.Log("streaming", "stream finalized", "session", sess.ID.String(), "chars", content.Len())
}
