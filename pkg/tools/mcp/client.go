package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ruderlabs/ruder/pkg/vllm"
)

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	Name      string
	Transport string // "sse" or "streamable-http" (default)
	URL       string
	Headers   map[string]string
}

// Client wraps an MCP SDK client and session for a single MCP server
// connection. It handles connection lifecycle, tool discovery, and the
// adaptation of discovered tools for the orchestrator.
type Client struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession

	mu            sync.Mutex
	cachedTools   []vllm.Tool
	toolsResolved bool
}

// NewClient creates a Client for the given server configuration.
// Call Connect to establish the connection.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the MCP connection to the server, performing the
// protocol handshake.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport establishes the MCP connection using the given
// transport. If transport is nil, a transport is created from the server
// configuration.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "ruder",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

// createTransport creates an MCP transport based on the server configuration.
func (c *Client) createTransport() (mcp.Transport, error) {
	httpClient := c.buildHTTPClient()

	switch c.cfg.Transport {
	case "sse":
		transport := &mcp.SSEClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http", "":
		transport := &mcp.StreamableClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that injects the configured static
// headers. Returns nil when no headers are configured.
func (c *Client) buildHTTPClient() *http.Client {
	if len(c.cfg.Headers) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: c.cfg.Headers,
		},
	}
}

// headerTransport is an http.RoundTripper that adds custom headers to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Tools queries the MCP server for available tools, adapts each one for the
// orchestrator, and caches the results. Subsequent calls return the cached
// tools.
//
// Each adapted tool passes the user's prompt as the "query" argument and
// joins the text content blocks of the result into the grounding context.
func (c *Client) Tools(ctx context.Context) ([]vllm.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.toolsResolved {
		return c.cachedTools, nil
	}

	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var adapted []vllm.Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		name := tool.Name
		adapted = append(adapted, vllm.Tool{
			Name: name,
			Run: func(ctx context.Context, prompt string) (*vllm.ToolOutput, error) {
				return c.callTool(ctx, name, prompt)
			},
		})
	}

	c.cachedTools = adapted
	c.toolsResolved = true
	return adapted, nil
}

// callTool executes one tool call on the MCP server and extracts the text
// content of the result.
func (c *Client) callTool(ctx context.Context, name, prompt string) (*vllm.ToolOutput, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: map[string]any{"query": prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("calling MCP tool %q on %q: %w", name, c.cfg.Name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("MCP tool %q on %q reported an error: %s",
			name, c.cfg.Name, textContent(result))
	}
	return vllm.Text(textContent(result)), nil
}

// textContent joins the text blocks of a tool result.
func textContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
