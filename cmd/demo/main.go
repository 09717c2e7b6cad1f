// Command demo walks through the ruder client API against a running
// backend: plain generation, streaming, structured output, and the
// two-phase tool protocol. Pair it with cmd/mock-vllm for an offline run:
//
//	go run ./cmd/mock-vllm &
//	RUDER_BACKEND_URL=http://localhost:9090 RUDER_MODEL=mock-model go run ./cmd/demo
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ruderlabs/ruder/pkg/auth"
	"github.com/ruderlabs/ruder/pkg/auth/jwt"
	"github.com/ruderlabs/ruder/pkg/config"
	"github.com/ruderlabs/ruder/pkg/debug"
	"github.com/ruderlabs/ruder/pkg/schema"
	"github.com/ruderlabs/ruder/pkg/session"
	"github.com/ruderlabs/ruder/pkg/vllm"
)

type cityReport struct {
	City    string `json:"city"`
	Summary string `json:"summary"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)

	tokens, err := tokenSource(cfg)
	if err != nil {
		return err
	}

	client, err := vllm.New(vllm.Config{
		BaseURL: cfg.Backend.URL,
		Tokens:  tokens,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	sess := session.New(cfg.Backend.Model)
	if cfg.Session.System != "" {
		sess.System = cfg.Session.System
	}
	sess.SaveMessages = cfg.Session.SaveMessages

	ctx := context.Background()

	fmt.Println("=== ruder client demo ===")
	fmt.Println()

	// 1. Plain generation.
	answer, err := client.Gen(ctx, sess, "Say hello in one short sentence.", nil)
	if err != nil {
		return err
	}
	fmt.Printf("[1] Gen: %s\n", answer)

	// 2. Streaming.
	fmt.Print("[2] Stream: ")
	events, err := client.Stream(ctx, sess, "Count from 1 to 5.", nil)
	if err != nil {
		return err
	}
	for ev := range events {
		if ev.Err != nil {
			return ev.Err
		}
		fmt.Print(ev.Delta)
	}
	fmt.Println()

	// 3. Structured output via guided decoding.
	var report cityReport
	err = client.GenStructured(ctx, sess, "Describe Oslo in one sentence.", &report,
		&vllm.GenOptions{OutputSchema: schema.MustFor[cityReport]()})
	if err != nil {
		return err
	}
	fmt.Printf("[3] GenStructured: %+v\n", report)

	// 4. Tool orchestration.
	tools := []vllm.Tool{
		{
			Name: "current_time",
			Run: func(ctx context.Context, prompt string) (*vllm.ToolOutput, error) {
				return vllm.Text("The current time is 12:00 UTC."), nil
			},
		},
	}
	result, err := client.GenWithTools(ctx, sess, "What time is it?", tools, nil)
	if err != nil {
		return err
	}
	fmt.Printf("[4] GenWithTools: tool=%q response=%q\n", result.Tool, result.Response)

	totals := sess.Totals()
	fmt.Printf("\nSession %s: %d messages, %d tokens total\n",
		sess.ID, len(sess.Messages), totals.TotalTokens)
	return nil
}

// tokenSource builds the bearer token source matching the configured auth
// type.
func tokenSource(cfg *config.Config) (auth.TokenSource, error) {
	switch cfg.Auth.Type {
	case "apikey":
		return auth.StaticToken(cfg.Backend.APIKey), nil
	case "jwt":
		return jwt.New(jwt.Config{
			Secret:   cfg.Auth.JWT.Secret,
			Issuer:   cfg.Auth.JWT.Issuer,
			Subject:  cfg.Auth.JWT.Subject,
			Audience: cfg.Auth.JWT.Audience,
			TTL:      cfg.Auth.JWT.TTL,
		})
	default:
		return nil, nil
	}
}
