// Command rlmctl is a thin driver for the RLM orchestrator: it loads
// Config, builds the configured LM provider, reads one context payload, and
// prints the resulting completion. It is itself an out-of-scope "interactive
// CLI shell" per SPEC_FULL.md §1 — included only to exercise the core,
// following the teacher's cmd/agent-demo/main.go wiring pattern.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"rlm/internal/config"
	"rlm/internal/llm/providers"
	"rlm/internal/observability"
	"rlm/internal/rlm"
	"rlm/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rlmctl:", err)
		os.Exit(1)
	}
}

func run() error {
	contextFlag := flag.String("context", "", "path to a file containing the context payload; reads stdin if omitted")
	verbose := flag.Bool("verbose", false, "print the full iteration trace as JSON after the answer")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdownTelemetry(ctx)

	payload, err := readContextPayload(*contextFlag)
	if err != nil {
		return fmt.Errorf("read context payload: %w", err)
	}

	provider, err := providers.Build(cfg, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	orch, err := rlm.New(cfg, provider)
	if err != nil {
		return fmt.Errorf("construct orchestrator: %w", err)
	}

	completion, err := orch.Complete(ctx, payload)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	fmt.Println(completion.Response)

	if *verbose {
		trace, err := json.MarshalIndent(completion, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal trace: %w", err)
		}
		fmt.Fprintln(os.Stderr, string(trace))
	}

	return nil
}

func readContextPayload(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
