package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"irrigation-planner/internal/app"
	"irrigation-planner/internal/config"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "schedule":
		scheduleCmd := flag.NewFlagSet("schedule", flag.ExitOnError)
		force := scheduleCmd.Bool("force", false, "Regenerate even if a recent schedule exists")
		exportDir := scheduleCmd.String("export", "", "Write a JSON snapshot of the schedule into this directory")
		if len(os.Args) < 3 {
			fmt.Println("Usage: irrigation-planner schedule <plot-id> [--force] [--export DIR]")
			os.Exit(1)
		}
		scheduleCmd.Parse(os.Args[3:])

		sched, err := application.PrintSchedule(ctx, os.Stdout, os.Args[2], *force)
		if err != nil {
			log.Fatalf("Schedule failed: %v", err)
		}
		if *exportDir != "" {
			path, err := application.ExportSchedule(sched, *exportDir)
			if err != nil {
				log.Fatalf("Export failed: %v", err)
			}
			fmt.Printf("Schedule exported to %s\n", path)
		}
	case "backtest":
		backtestCmd := flag.NewFlagSet("backtest", flag.ExitOnError)
		opts := app.BacktestOptions{}
		backtestCmd.IntVar(&opts.Days, "days", 90, "Days of synthetic history")
		backtestCmd.StringVar(&opts.Crop, "crop", "tomato", "Crop type")
		backtestCmd.Float64Var(&opts.AreaM2, "area", 10, "Plot area in square meters")
		backtestCmd.Float64Var(&opts.AgeDays, "age", 30, "Crop age in days at the start of the history")
		backtestCmd.StringVar(&opts.Soil, "soil", "loam", "Soil type")
		backtestCmd.Uint64Var(&opts.Seed, "seed", 42, "Seed for the synthetic history")
		backtestCmd.StringVar(&opts.ExportDir, "export", "", "Write the JSON and markdown report into this directory")
		backtestCmd.Parse(os.Args[2:])

		if _, err := application.RunBacktest(os.Stdout, opts); err != nil {
			log.Fatalf("Backtest failed: %v", err)
		}
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.CleanupMetrics(*days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	case "token":
		tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
		ttl := tokenCmd.Duration("ttl", 24*time.Hour, "Token lifetime")
		if len(os.Args) < 3 {
			fmt.Println("Usage: irrigation-planner token <subject> [--ttl 24h]")
			os.Exit(1)
		}
		tokenCmd.Parse(os.Args[3:])

		token, err := application.IssueToken(os.Args[2], *ttl)
		if err != nil {
			log.Fatalf("Token failed: %v", err)
		}
		fmt.Println(token)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: irrigation-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  schedule <plot-id>  Print (and optionally regenerate or export) a plot's plan")
	fmt.Println("  backtest            Compare the model against the threshold rule on synthetic history")
	fmt.Println("  metrics-cleanup     Remove old metric records")
	fmt.Println("  token <subject>     Issue a REST API bearer token")
}
