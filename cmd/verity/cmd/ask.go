package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a single question with checked content and verified links",
	Long: `Ask runs one question through the full attempt loop: generate, clean,
length check, content check, link check, and retry with feedback until an
answer is accepted or the retry budget runs out.

Exit code is 0 when an answer was accepted, 1 otherwise.`,
	RunE: runAsk,
}

var (
	askQuestion   string
	askContext    string
	askCharLimit  int
	askMaxRetries int
	askJSON       bool
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question text (required)")
	askCmd.Flags().StringVar(&askContext, "context", "", "background context passed to the answering agent")
	askCmd.Flags().IntVar(&askCharLimit, "char-limit", 0, "maximum answer length in characters")
	askCmd.Flags().IntVar(&askMaxRetries, "max-retries", 0, "attempt budget")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	_ = askCmd.MarkFlagRequired("question")
}

func runAsk(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	charLimit := cfg.Defaults.CharLimit
	if askCharLimit > 0 {
		charLimit = askCharLimit
	}
	maxRetries := cfg.Defaults.MaxRetries
	if askMaxRetries > 0 {
		maxRetries = askMaxRetries
	}
	questionContext := cfg.Defaults.Context
	if askContext != "" {
		questionContext = askContext
	}

	q, err := core.NewQuestion("", askQuestion, questionContext, charLimit, maxRetries)
	if err != nil {
		return err
	}

	capability, err := buildAgent(cfg, log)
	if err != nil {
		return err
	}
	validator := buildValidator(cfg, capability, log)
	orch := buildOrchestrator(cfg, capability, validator, log, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := orch.Process(ctx, q)
	if !result.Success {
		return fmt.Errorf("%s", result.ErrorMessage)
	}
	return printAnswer(result.Answer)
}

func printAnswer(a *core.Answer) error {
	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"content":     a.Content,
			"sources":     a.Sources,
			"status":      a.Status,
			"retry_count": a.RetryCount,
		})
	}

	fmt.Println(a.Content)
	if len(a.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, u := range a.Sources {
			fmt.Println("  " + u)
		}
	}
	return nil
}
