// Package main project knowledge subcommands: snapshots, similarity, and
// learning transfer.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patternmind/internal/intelligence"
)

var knowledgePath string

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge <project-id>",
	Short: "Show (and refresh if stale) a project's knowledge snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledge,
}

var similarCmd = &cobra.Command{
	Use:   "similar <project-id>",
	Short: "Find projects similar to the given one",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

var transferCmd = &cobra.Command{
	Use:   "transfer <from-project> <to-project>",
	Short: "Plan a learning transfer between two projects",
	Args:  cobra.ExactArgs(2),
	RunE:  runTransfer,
}

func runKnowledge(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		if knowledgePath != "" {
			if err := c.RegisterProject(projectID, knowledgePath, false); err != nil {
				return err
			}
		}

		k, err := c.ProjectKnowledge(ctx, projectID)
		if err != nil {
			return err
		}

		fmt.Printf("Project %s (%s)\n", k.ProjectID, k.ProjectType)
		fmt.Println(strings.Repeat("-", 50))
		fmt.Printf("  analyzed   %s\n", k.LastAnalyzed.Format(time.RFC3339))
		fmt.Printf("  sessions   %d (%.0f%% success)\n", k.Metrics.SessionCount, k.Metrics.SuccessRate*100)
		fmt.Printf("  patterns   %s\n", strings.Join(k.Patterns, ", "))
		fmt.Printf("  deps       %d declared\n", len(k.Dependencies))
		for _, d := range k.TechnicalDebt {
			fmt.Printf("  debt [%s] %s: %s\n", d.Severity, d.Type, d.Description)
		}
		return nil
	})
}

func runSimilar(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		similar, err := c.FindSimilarProjects(ctx, args[0])
		if err != nil {
			return err
		}
		if len(similar) == 0 {
			fmt.Println("No similar projects.")
			return nil
		}
		for _, s := range similar {
			fmt.Printf("%-25s %.2f  shared: %d patterns, %d deps\n",
				s.Project.ProjectID, s.Similarity, len(s.SharedPatterns), len(s.SharedDependencies))
		}
		return nil
	})
}

func runTransfer(cmd *cobra.Command, args []string) error {
	from, to := args[0], args[1]
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		plan, err := c.PlanTransfer(ctx, from, to)
		if err != nil {
			return err
		}
		logger.Debug("Transfer planned",
			zap.String("from", from),
			zap.String("to", to),
			zap.Int("patterns", len(plan.Patterns)))

		fmt.Printf("Transfer plan %s -> %s\n", from, to)
		fmt.Println(strings.Repeat("-", 50))
		if len(plan.Patterns) == 0 {
			fmt.Println("  no patterns apply")
		}
		for _, p := range plan.Patterns {
			fmt.Printf("  pattern %-25s %.0f%% success\n", p.ID, p.Usage.SuccessRate*100)
		}
		for _, s := range plan.Styles {
			fmt.Printf("  style   %s = %s (%.0f%%)\n", s.Rule, s.Value, s.Confidence*100)
		}
		for _, r := range plan.Recommendations {
			fmt.Printf("  advice  %s\n", r)
		}
		return nil
	})
}

func init() {
	knowledgeCmd.Flags().StringVarP(&knowledgePath, "path", "p", "", "project path for collaborator analysis")
}
