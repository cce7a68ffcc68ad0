// Package main reporting subcommands: metrics summary, insight report, and
// global cross-project analysis.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patternmind/internal/intelligence"
)

var (
	summaryWindowDays int
	insightsProject   string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate session metrics over a time window",
	RunE:  runSummary,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate the insight report over recent sessions",
	RunE:  runInsights,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recompute cross-project insights from all patterns and projects",
	RunE:  runAnalyze,
}

func runSummary(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		summary, err := c.MetricsSummary(summaryWindowDays)
		if err != nil {
			return err
		}

		fmt.Printf("Sessions in the last %d days\n", summary.WindowDays)
		fmt.Println(strings.Repeat("-", 50))
		fmt.Printf("  total      %d\n", summary.TotalSessions)
		fmt.Printf("  completed  %d\n", summary.SuccessfulSessions)
		fmt.Printf("  failed     %d\n", summary.FailedSessions)
		fmt.Printf("  cancelled  %d\n", summary.CancelledSessions)
		fmt.Printf("  running    %d\n", summary.RunningSessions)
		if summary.AverageDuration > 0 {
			fmt.Printf("  avg length %v (completed only)\n", summary.AverageDuration.Round(time.Minute))
		}
		if summary.ObjectiveCompletion > 0 {
			fmt.Printf("  objectives %.0f%% completed\n", summary.ObjectiveCompletion*100)
		}
		if len(summary.TopErrors) > 0 {
			fmt.Println("  top errors:")
			for _, e := range summary.TopErrors {
				fmt.Printf("    %-20s %d\n", e.Type, e.Count)
			}
		}
		return nil
	})
}

func runInsights(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		report, err := c.GenerateInsights()
		if err != nil {
			return err
		}

		fmt.Printf("Insight report (generated %s)\n", report.GeneratedAt.Format(time.RFC3339))
		fmt.Println(strings.Repeat("-", 60))
		if len(report.Insights) == 0 {
			fmt.Println("No insights for the current window.")
		}
		for _, in := range report.Insights {
			fmt.Printf("[%s] %s\n    %s\n", in.Kind, in.Title, in.Detail)
			if in.Recommendation != "" {
				fmt.Printf("    -> %s\n", in.Recommendation)
			}
		}
		for _, p := range report.PositivePatterns {
			fmt.Printf("[+] %s\n", p)
		}
		for _, p := range report.NegativePatterns {
			fmt.Printf("[-] %s\n", p)
		}
		if len(report.Recommendations) > 0 {
			fmt.Println("Recommendations:")
			for _, r := range report.Recommendations {
				fmt.Printf("  - %s\n", r)
			}
		}
		return nil
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		insights, err := c.AnalyzeGlobalPatterns()
		if err != nil {
			return err
		}
		if insightsProject != "" {
			insights, err = c.CrossProjectInsights(insightsProject)
			if err != nil {
				return err
			}
		}

		if len(insights) == 0 {
			fmt.Println("No cross-project insights.")
			return nil
		}
		for _, in := range insights {
			fmt.Printf("[%s] %s (confidence %.2f)\n    %s\n    -> %s\n",
				in.Type, in.Title, in.Confidence, in.Description, in.Recommendation)
		}
		return nil
	})
}

func init() {
	summaryCmd.Flags().IntVarP(&summaryWindowDays, "days", "d", 30, "window size in days")
	analyzeCmd.Flags().StringVarP(&insightsProject, "project", "p", "", "show only insights affecting this project")
}
