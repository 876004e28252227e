package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/samratjha96/kitchen-lens/config"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

func main() {
	var model, mimeType string
	var asJSON bool

	flag.StringVar(&model, "model", "", "Gemini model (default "+llm.DefaultModel+")")
	flag.StringVar(&mimeType, "mime", "", "Image MIME type (guessed from the extension if omitted)")
	flag.BoolVar(&asJSON, "json", false, "Print the analysis as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image-path>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	// Load env file from user config directory (same as the server)
	config.LoadEnvFile()

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	if mimeType == "" {
		mimeType = llm.MIMETypeFromPath(imagePath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if model == "" {
		model = cfg.GeminiModel
	}

	ctx := context.Background()

	extractor, err := llm.NewGeminiExtractor(ctx, llm.GeminiOptions{APIKey: cfg.GeminiAPIKey, Model: model})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini extractor: %v\n", err)
		os.Exit(1)
	}

	result, err := extractor.Extract(ctx, imageData, mimeType)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Analysis); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding analysis: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("=== %s ===\n\n", extractor.Model())
	fmt.Print(fridge.Summary(result.Analysis))
	fmt.Println()
	fmt.Printf("Tokens:         %d in / %d out / %d total\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)
	fmt.Printf("Cost:           $%.6f\n", result.Usage.CostUSD)
}

func printError(err error) {
	var schemaErr *llm.SchemaValidationError
	var parseErr *llm.ParseError
	switch {
	case errors.As(err, &schemaErr):
		fmt.Fprintln(os.Stderr, "Model response did not match the inventory schema:")
		for _, v := range schemaErr.Violations {
			fmt.Fprintf(os.Stderr, "  - %s\n", v)
		}
	case errors.As(err, &parseErr):
		fmt.Fprintf(os.Stderr, "Model response was not JSON: %v\n\n%s\n", parseErr.Err, parseErr.Raw)
	default:
		fmt.Fprintf(os.Stderr, "Error analyzing image: %v\n", err)
	}
}
