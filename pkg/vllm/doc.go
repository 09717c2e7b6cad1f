// Package vllm implements the chat completion client for vLLM and other
// OpenAI-compatible backends.
//
// The client covers four concerns:
//
//   - Request building: PrepareRequest assembles headers, the JSON payload,
//     and the user message from a prompt, per-call overrides, and optional
//     input/output schema descriptors. vLLM has no native function calling;
//     guided_json and guided_choice decoding stand in for it.
//   - Synchronous execution: Gen and GenStructured issue one blocking call,
//     parse the completion, and add the reported usage to the session totals.
//   - Streaming execution: Stream opens a streamed call and delivers
//     incremental delta events on a channel, finalizing the assistant
//     message from the accumulated text. Streamed frames carry no usage
//     block, so streaming contributes nothing to the session totals.
//   - Tool orchestration: GenWithTools runs the two-phase select-then-ground
//     protocol over a set of tool descriptors.
//
// All entry points take a context.Context; blocking callers pass
// context.Background(), cancellable callers pass their own. The client
// imposes no timeouts on streaming and never retries; transport failures
// surface as chat backend errors.
package vllm
