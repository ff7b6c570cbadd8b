package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/external/openai"
)

func main() {
	// Parse command line flags
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	baseURL := flag.String("base-url", "", "OpenAI-compatible endpoint")
	model := flag.String("model", "gpt-4o-mini", "Chat model")
	promptsPath := flag.String("prompts", "", "Path to a prompts YAML file")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided\n")
		fmt.Fprintf(os.Stderr, "Usage: draft-letter --key sk-... [--model gpt-4o-mini] [--prompts <path>]\n")
		os.Exit(1)
	}

	var prompts *openai.PromptConfig
	if *promptsPath != "" {
		if prompts, err = openai.LoadPrompts(*promptsPath); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	drafter := openai.NewLetterDrafter(*apiKey, *baseURL, *model, prompts, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// A sample promotion exercises the prompt end to end
	start := time.Now()
	body, err := drafter.DraftLetter(ctx, port.LetterRequest{
		CompanyName:    "Sample Industries Pvt Ltd",
		EmployeeID:     "EMP-001",
		Kind:           "Promotion",
		CurrentCTC:     "1200000",
		ProposedCTC:    "1450000",
		NewDesignation: "Senior Engineer",
		EffectiveDate:  time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		Justification:  "Consistently exceeded delivery goals",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED after %v: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}

	fmt.Printf("=== Draft (%v) ===\n\n%s\n", time.Since(start).Round(time.Millisecond), body)
}
