package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "load":
		loadCmd(apiURL, args)
	case "generate":
		generateCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Generation Simulator - Development tool for exercising the generation pipeline

USAGE:
  simulator <command> [options]

COMMANDS:
  load      Register users and fire concurrent generation requests
  generate  Register one user and generate a single post
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # 5 users, 4 requests each, every third request forced through the queue
  simulator load --users=5 --requests=4 --async-every=3

  # One post for LinkedIn
  simulator generate --topic="Launching our beta" --platform=linkedin`)
}

type outcome struct {
	inline    int
	queued    int
	completed int
	failed    int
	errors    []string
}

func (o *outcome) add(other outcome) {
	o.inline += other.inline
	o.queued += other.queued
	o.completed += other.completed
	o.failed += other.failed
	o.errors = append(o.errors, other.errors...)
}

func loadCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	users := fs.Int("users", 3, "Number of users to register")
	requests := fs.Int("requests", 3, "Generation requests per user")
	asyncEvery := fs.Int("async-every", 2, "Force every Nth request through the queue (0 disables)")
	platform := fs.String("platform", "linkedin", "Target platform")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall deadline")
	fs.Parse(args)

	if *users < 1 || *requests < 1 {
		fmt.Println("Error: --users and --requests must be at least 1")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := NewAPIClient(apiURL)

	fmt.Println("=== Generation Simulator: Load ===")
	fmt.Println()
	fmt.Printf("Registering %d users:\n", *users)

	tokens := make([]string, *users)
	for i := range tokens {
		user, token, err := client.RegisterUser(ctx, fmt.Sprintf("sim%d", i+1))
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, *users, err)
			os.Exit(1)
		}
		tokens[i] = token
		fmt.Printf("  [%d/%d] %s\n", i+1, *users, user.Username)
	}

	fmt.Println()
	fmt.Printf("Firing %d requests...\n", *users**requests)

	start := time.Now()
	var (
		mu    sync.Mutex
		total outcome
	)

	g, gctx := errgroup.WithContext(ctx)
	for u, token := range tokens {
		u, token := u, token
		for r := 0; r < *requests; r++ {
			n := u**requests + r + 1
			async := *asyncEvery > 0 && n%*asyncEvery == 0
			topic := fmt.Sprintf("Simulated topic %d for user %d", r+1, u+1)
			g.Go(func() error {
				res := runOne(gctx, client, token, topic, *platform, async)
				mu.Lock()
				total.add(res)
				mu.Unlock()
				return nil
			})
		}
	}
	g.Wait()

	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  SUMMARY")
	fmt.Println("=========================================")
	fmt.Printf("  Duration:         %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Inline (201):     %d\n", total.inline)
	fmt.Printf("  Queued (202):     %d\n", total.queued)
	fmt.Printf("  Jobs completed:   %d\n", total.completed)
	fmt.Printf("  Jobs failed:      %d\n", total.failed)
	fmt.Printf("  Request errors:   %d\n", len(total.errors))
	for _, e := range total.errors {
		fmt.Printf("    - %s\n", e)
	}

	fmt.Println()
	fmt.Println("Usage per user:")
	for i, token := range tokens {
		usage, err := client.Usage(ctx, token)
		if err != nil {
			fmt.Printf("  user %d: %v\n", i+1, err)
			continue
		}
		fmt.Printf("  user %d: today=%d/%d tokens=%d cost=$%s\n",
			i+1, usage.TodayCount, usage.DailyLimit, usage.TotalTokens, usage.TotalCostUSD)
	}
}

func runOne(ctx context.Context, client *APIClient, token, topic, platform string, async bool) outcome {
	var o outcome

	res, err := client.Generate(ctx, token, topic, platform, async)
	if err != nil {
		o.errors = append(o.errors, err.Error())
		return o
	}
	if res.Draft != nil {
		o.inline++
		return o
	}

	o.queued++
	status, err := waitForJob(ctx, client, token, res.Job.JobID)
	if err != nil {
		o.errors = append(o.errors, fmt.Sprintf("job %s: %v", res.Job.JobID, err))
		return o
	}
	if status.State == "completed" {
		o.completed++
	} else {
		o.failed++
		o.errors = append(o.errors, fmt.Sprintf("job %s: %s", status.JobID, status.FailedReason))
	}
	return o
}

func waitForJob(ctx context.Context, client *APIClient, token, jobID string) (*JobStatus, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := client.JobStatus(ctx, token, jobID)
		if err != nil {
			return nil, err
		}
		if status.State == "completed" || status.State == "failed" {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func generateCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	topic := fs.String("topic", "", "Post topic (required)")
	platform := fs.String("platform", "general", "Target platform")
	async := fs.Bool("async", false, "Force the request through the queue")
	fs.Parse(args)

	if *topic == "" {
		fmt.Println("Error: --topic is required")
		fmt.Println("\nUsage: simulator generate --topic=\"...\" [--platform=x]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client := NewAPIClient(apiURL)

	user, token, err := client.RegisterUser(ctx, "sim")
	if err != nil {
		fmt.Printf("Failed to register: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registered %s\n", user.Username)

	res, err := client.Generate(ctx, token, *topic, *platform, *async)
	if err != nil {
		fmt.Printf("Generation failed: %v\n", err)
		os.Exit(1)
	}

	if res.Job != nil {
		fmt.Printf("Queued job %s, waiting...\n", res.Job.JobID)
		status, err := waitForJob(ctx, client, token, res.Job.JobID)
		if err != nil {
			fmt.Printf("Failed waiting for job: %v\n", err)
			os.Exit(1)
		}
		if status.State != "completed" {
			fmt.Printf("Job failed: %s\n", status.FailedReason)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println(string(status.Result))
		return
	}

	fmt.Println()
	fmt.Printf("%s (%s)\n\n%s\n", res.Draft.Title, res.Draft.Platform, res.Draft.Content)
}
