// Package main pattern subcommands: registering, searching, relating, and
// recording usage of code patterns.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"patternmind/internal/intelligence"
	"patternmind/internal/types"
)

var (
	patternCategory    string
	patternLanguage    string
	patternDescription string
	patternCode        string
	patternTags        []string

	searchCategory    string
	searchLanguage    string
	searchTags        []string
	searchMinSuccess  float64
	searchLimit       int

	relatedLimit int

	useProject string
	useFailed  bool
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Manage code patterns",
}

var patternAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternAdd,
}

var patternSearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search patterns by facets and text, ranked by relevance",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPatternSearch,
}

var patternRelatedCmd = &cobra.Command{
	Use:   "related <pattern-id>",
	Short: "List patterns related to the given one",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternRelated,
}

var patternUseCmd = &cobra.Command{
	Use:   "use <pattern-id>",
	Short: "Record one usage outcome for a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternUse,
}

func runPatternAdd(cmd *cobra.Command, args []string) error {
	category, err := types.ParseCategory(patternCategory)
	if err != nil {
		return err
	}

	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		p, err := c.RegisterPattern(types.PatternDraft{
			Name:        args[0],
			Category:    category,
			Description: patternDescription,
			Code:        patternCode,
			Language:    patternLanguage,
			Tags:        patternTags,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Registered pattern %s (%s)\n", p.ID, p.Category)
		return nil
	})
}

func runPatternSearch(cmd *cobra.Command, args []string) error {
	criteria := types.SearchCriteria{
		Tags:     searchTags,
		Language: searchLanguage,
		Limit:    searchLimit,
	}
	if len(args) > 0 {
		criteria.SearchText = args[0]
	}
	if searchCategory != "" {
		category, err := types.ParseCategory(searchCategory)
		if err != nil {
			return err
		}
		criteria.Category = &category
	}
	if cmd.Flags().Changed("min-success") {
		criteria.MinSuccessRate = &searchMinSuccess
	}

	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		matches, err := c.SearchPatterns(criteria)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matching patterns.")
			return nil
		}

		fmt.Printf("%d matching patterns\n", len(matches))
		fmt.Println(strings.Repeat("-", 60))
		for _, m := range matches {
			fmt.Printf("%-30s %5.2f  %s\n", m.Pattern.ID, m.Relevance, m.Reason)
		}
		return nil
	})
}

func runPatternRelated(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		related, err := c.RelatedPatterns(args[0], relatedLimit)
		if err != nil {
			return err
		}
		if len(related) == 0 {
			fmt.Println("No related patterns.")
			return nil
		}
		for _, p := range related {
			fmt.Printf("%-30s %s (%s)\n", p.ID, p.Name, p.Category)
		}
		return nil
	})
}

func runPatternUse(cmd *cobra.Command, args []string) error {
	if useProject == "" {
		return fmt.Errorf("--project is required")
	}
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		if err := c.RecordPatternUsage(args[0], useProject, !useFailed); err != nil {
			return err
		}
		p, err := c.GetPattern(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Recorded usage: %s now at %d uses, %.0f%% success\n",
			p.ID, p.Usage.Count, p.Usage.SuccessRate*100)
		return nil
	})
}

func init() {
	patternAddCmd.Flags().StringVarP(&patternCategory, "category", "c", "", "pattern category (architecture, component, api, testing, performance, security, workflow)")
	patternAddCmd.Flags().StringVarP(&patternLanguage, "language", "l", "", "pattern language (empty or \"any\" for language-agnostic)")
	patternAddCmd.Flags().StringVarP(&patternDescription, "description", "d", "", "short description")
	patternAddCmd.Flags().StringVar(&patternCode, "code", "", "pattern code body")
	patternAddCmd.Flags().StringSliceVarP(&patternTags, "tags", "t", nil, "tags")
	_ = patternAddCmd.MarkFlagRequired("category")

	patternSearchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "filter by category")
	patternSearchCmd.Flags().StringVarP(&searchLanguage, "language", "l", "", "filter by language")
	patternSearchCmd.Flags().StringSliceVarP(&searchTags, "tags", "t", nil, "filter by tags (intersection)")
	patternSearchCmd.Flags().Float64Var(&searchMinSuccess, "min-success", 0, "minimum success rate")
	patternSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results")

	patternRelatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 5, "maximum results")

	patternUseCmd.Flags().StringVarP(&useProject, "project", "p", "", "project the pattern was used in")
	patternUseCmd.Flags().BoolVar(&useFailed, "failed", false, "record the usage as a failure")

	patternCmd.AddCommand(patternAddCmd)
	patternCmd.AddCommand(patternSearchCmd)
	patternCmd.AddCommand(patternRelatedCmd)
	patternCmd.AddCommand(patternUseCmd)
}
