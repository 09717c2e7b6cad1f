// Package chat defines the shared types of the ruder client: chat messages,
// token usage accounting, generation parameters, and the error taxonomy.
//
// Every other package in this module builds on these types; pkg/vllm
// translates them to and from the Chat Completions wire format.
package chat
