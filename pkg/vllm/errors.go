package vllm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ruderlabs/ruder/pkg/chat"
)

// mapHTTPError converts a non-2xx HTTP response into a chat backend error,
// attempting to parse the body for a descriptive message. The raw body is
// attached for the caller.
func mapHTTPError(resp *http.Response) *chat.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := extractErrorMessage(raw)
	if message == "" {
		message = fmt.Sprintf("backend error (HTTP %d)", resp.StatusCode)
	} else {
		message = fmt.Sprintf("backend error (HTTP %d): %s", resp.StatusCode, message)
	}

	return chat.NewBackendError(message, raw)
}

// extractErrorMessage tries to parse the body as a chatErrorResponse and
// returns the error message if found.
func extractErrorMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var errResp chatErrorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return ""
}
