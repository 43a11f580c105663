// Command eval scores the ask pipeline against a YAML case set and writes a
// JSON results file. Point it at an indexed corpus; the offline backend
// (LLM_PROVIDER=offline) gives deterministic runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akozyrev/factstack/internal/bootstrap"
	"github.com/akozyrev/factstack/internal/config"
	"github.com/akozyrev/factstack/internal/eval"
)

func main() {
	casesPath := flag.String("cases", "eval_set.yaml", "path to the evaluation case set")
	output := flag.String("output", "", "path for the JSON results (default eval_<timestamp>.json)")
	topK := flag.Int("top-k", 0, "retrieval depth per channel, 0 uses the configured default")
	flag.Parse()

	raw, err := os.ReadFile(*casesPath)
	if err != nil {
		log.Fatalf("read case set: %v", err)
	}
	cases, err := eval.LoadCases(raw)
	if err != nil {
		log.Fatalf("load case set: %v", err)
	}
	if len(cases) == 0 {
		log.Fatalf("no evaluation cases in %s", *casesPath)
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "factstack-eval")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	summary := eval.Run(ctx, app.AskUC, cases, *topK, app.Log)

	log.Printf("cases: %d passed: %d failed: %d",
		summary.TotalCases, summary.PassedCases, summary.FailedCases)
	log.Printf("recall@k: %.2f citation precision: %.2f groundedness: %.2f refusal accuracy: %.2f",
		summary.AvgRecallAtK, summary.AvgCitationPrecision,
		summary.AvgAnswerGroundedness, summary.RefusalAccuracy)
	for difficulty, rate := range summary.PassRateByDifficulty {
		log.Printf("pass rate (%s): %.2f", difficulty, rate)
	}

	out := *output
	if out == "" {
		out = fmt.Sprintf("eval_%s.json", time.Now().UTC().Format("20060102_150405"))
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("encode results: %v", err)
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		log.Fatalf("write results: %v", err)
	}
	log.Printf("results written to %s", out)

	if summary.FailedCases > 0 {
		os.Exit(1)
	}
}
