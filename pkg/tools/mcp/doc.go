// Package mcp connects MCP (Model Context Protocol) servers to the tool
// orchestrator. It wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk), discovers the tools a server
// offers, and adapts each one into a vllm.Tool whose output feeds the
// grounded second generation.
//
// Configuration is provided via ServerConfig structs, which specify the
// server name, transport type (SSE or streamable-http), URL, and optional
// static headers.
package mcp
