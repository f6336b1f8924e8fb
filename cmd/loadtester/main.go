// Command loadtester fires LoadTestConcurrency concurrent requests at
// LoadTestTargetURL and prints latency percentiles (spec §4.8), grounded
// on original_source/utils/load_tester.py's run_load_test.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/loadtest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("RAG System Load Test")
	fmt.Println("============================================================")
	fmt.Printf("Target:      %s\n", cfg.LoadTestTargetURL)
	fmt.Printf("Concurrency: %d requests\n", cfg.LoadTestConcurrency)
	fmt.Println("Starting test...")
	fmt.Println()

	runner := loadtest.NewRunner(cfg.LoadTestTargetURL, cfg.LoadTestConcurrency)
	rep := runner.Run(context.Background())

	if rep.Successful == 0 {
		fmt.Println("All requests failed!")
		for _, e := range rep.SampleErrors {
			fmt.Println("  -", e)
		}
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Load Test Results")
	fmt.Println("============================================================")
	fmt.Printf("Total Duration:    %.2fs\n", rep.TotalDuration.Seconds())
	fmt.Printf("Total Requests:    %d\n", rep.TotalRequests)
	fmt.Printf("Successful:        %d (%.1f%%)\n", rep.Successful, float64(rep.Successful)/float64(rep.TotalRequests)*100)
	fmt.Printf("Failed:            %d (%.1f%%)\n", rep.Failed, float64(rep.Failed)/float64(rep.TotalRequests)*100)
	fmt.Println()
	fmt.Println("Latency Statistics (ms):")
	fmt.Printf("  Min:             %.2f\n", rep.MinMS)
	fmt.Printf("  P50 (Median):    %.2f\n", rep.P50MS)
	fmt.Printf("  P95:             %.2f\n", rep.P95MS)
	fmt.Printf("  P99:             %.2f\n", rep.P99MS)
	fmt.Printf("  Max:             %.2f\n", rep.MaxMS)
	fmt.Printf("  Average:         %.2f\n", rep.AvgMS)
	fmt.Println()
	fmt.Printf("Throughput:        %.2f req/s\n", rep.ThroughputRPS)

	if rep.Failed > 0 {
		fmt.Println()
		fmt.Println("Errors encountered:")
		for i, e := range rep.SampleErrors {
			fmt.Printf("  %d. %s\n", i+1, e)
		}
	}
	fmt.Println("============================================================")
}
