// Package main bulk interchange subcommands: pattern export and import.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patternmind/internal/intelligence"
	"patternmind/internal/types"
)

var (
	exportCategory string
	exportFile     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export patterns as JSON (stdout unless --out)",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import patterns from a JSON export (existing ids are skipped)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runExport(cmd *cobra.Command, args []string) error {
	var category *types.PatternCategory
	if exportCategory != "" {
		parsed, err := types.ParseCategory(exportCategory)
		if err != nil {
			return err
		}
		category = &parsed
	}

	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		serialized, err := c.ExportPatterns(category)
		if err != nil {
			return err
		}
		if exportFile == "" {
			fmt.Println(serialized)
			return nil
		}
		if err := os.WriteFile(exportFile, []byte(serialized), 0644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		logger.Info("Patterns exported", zap.String("file", exportFile))
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		imported, err := c.ImportPatterns(string(data))
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d new patterns\n", imported)
		return nil
	})
}

func init() {
	exportCmd.Flags().StringVarP(&exportCategory, "category", "c", "", "export only this category")
	exportCmd.Flags().StringVarP(&exportFile, "out", "o", "", "write to file instead of stdout")
}
