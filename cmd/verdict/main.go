// Command verdict judges a prompt read from the command line or stdin
// using the provider configured through JUDGE_* environment variables.
//
// Usage:
//
//	JUDGE_PROVIDER=openai JUDGE_API_KEY=... verdict "prompt to evaluate"
//	echo "prompt to evaluate" | verdict
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/verdictlabs/verdict/infrastructure/judge"
)

func main() {
	system := flag.String("system", "", "system prompt (judging rubric)")
	scale := flag.Float64("scale", 0, "assumed score scale for bare numbers (e.g. 10 or 100)")
	noCache := flag.Bool("no-cache", false, "bypass the judgment cache")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	cfg, err := judge.ConfigFromEnv(ctx)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	if *scale > 0 {
		cfg.DefaultScale = *scale
	}

	prompt := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(prompt) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.WithError(err).Fatal("read stdin")
		}
		prompt = string(data)
	}

	client, err := judge.NewClient(cfg, judge.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("client construction")
	}

	opts := []judge.JudgeOption{}
	if *system != "" {
		opts = append(opts, judge.WithSystemPrompt(*system))
	}
	if *noCache {
		opts = append(opts, judge.WithCacheOverride(false))
	}

	judgment, err := client.Judge(ctx, prompt, opts...)
	if err != nil {
		log.WithError(err).Fatal("judgment failed")
	}

	out := struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
		Unparsed   bool    `json:"unparsed,omitempty"`
		CostUSD    float64 `json:"cost_usd"`
	}{
		Score:      judgment.Score,
		Confidence: judgment.Confidence,
		Reasoning:  judgment.Reasoning,
		Unparsed:   judgment.Unparsed(),
		CostUSD:    client.TotalCost(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		log.WithError(err).Fatal("encode output")
	}
}
