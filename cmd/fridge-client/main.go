package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/dedent"
	"github.com/samratjha96/kitchen-lens/config"
	"github.com/samratjha96/kitchen-lens/internal/client"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

var usage = strings.TrimSpace(dedent.Dedent(`
	Usage: fridge-client [-server URL] <command> [args]

	Commands:
	  analyze <image-path>            Analyze a fridge photo and store the result
	  show                            Show the stored analysis
	  set-quantity <index> <quantity> Change the quantity of one item
	  clear                           Remove the stored analysis
	  ask <prompt> [image-path]       Ask the model a free-form question

	Environment variables:
	  KITCHEN_LENS_URL - Server address (default http://localhost:8080)
`))

func main() {
	config.LoadEnvFile()

	serverURL := os.Getenv("KITCHEN_LENS_URL")
	flag.StringVar(&serverURL, "server", serverURL, "Server address")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	c := client.NewClient(client.ClientOpts{BaseURL: serverURL})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, c, args[0], args[1:]); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, command string, args []string) error {
	switch command {
	case "analyze":
		if len(args) != 1 {
			return errors.New("analyze needs an image path")
		}
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		result, err := c.Analyze(ctx, image, llm.MIMETypeFromPath(args[0]))
		if err != nil {
			return err
		}
		fmt.Print(fridge.Summary(result.Analysis))
		if result.Cached {
			fmt.Println("\n(cached result)")
		} else {
			fmt.Printf("\nTokens: %d total, cost $%.6f\n", result.Usage.TotalTokens, result.Usage.CostUSD)
		}

	case "show":
		analysis, err := c.GetAnalysis(ctx)
		if err != nil {
			return err
		}
		if analysis == nil {
			fmt.Println("No analysis stored.")
			return nil
		}
		fmt.Print(fridge.Summary(analysis))

	case "set-quantity":
		if len(args) != 2 {
			return errors.New("set-quantity needs an index and a quantity")
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		quantity, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		analysis, err := c.UpdateQuantity(ctx, index, quantity)
		if err != nil {
			return err
		}
		if analysis == nil {
			fmt.Println("No analysis stored.")
			return nil
		}
		fmt.Print(fridge.Summary(analysis))

	case "clear":
		if err := c.ClearAnalysis(ctx); err != nil {
			return err
		}
		fmt.Println("Analysis cleared.")

	case "ask":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("ask needs a prompt and optionally an image path")
		}
		var image []byte
		var mimeType string
		if len(args) == 2 {
			var err error
			if image, err = os.ReadFile(args[1]); err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			mimeType = llm.MIMETypeFromPath(args[1])
		}
		text, err := c.Generate(ctx, args[0], image, mimeType)
		if err != nil {
			return err
		}
		fmt.Println(text)

	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return nil
}

func printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Violations) > 0 {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
		for _, v := range apiErr.Violations {
			fmt.Fprintf(os.Stderr, "  - %s\n", v)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
