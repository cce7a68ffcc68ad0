// Package main session subcommands: lifecycle and outcome recording for
// development sessions.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patternmind/internal/intelligence"
	"patternmind/internal/types"
)

var (
	sessionObjectives []string
	sessionStatus     string
	gateFailed        bool
	errType           string

	changeFiles   int
	changeAdded   int
	changeRemoved int
	changeCommits int
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Track development sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start [session-id]",
	Short: "Start a session (id generated when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionStart,
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <session-id>",
	Short: "Update a running session's status or objectives",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionUpdate,
}

var sessionErrorCmd = &cobra.Command{
	Use:   "error <session-id> <message>",
	Short: "Record an error in a running session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionError,
}

var sessionGateCmd = &cobra.Command{
	Use:   "gate <session-id> <gate>",
	Short: "Record a quality gate result (lint, typecheck, tests, build)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionGate,
}

var sessionObjectiveCmd = &cobra.Command{
	Use:   "objective <session-id> <objective>",
	Short: "Mark a declared objective complete",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionObjective,
}

var sessionChangesCmd = &cobra.Command{
	Use:   "changes <session-id>",
	Short: "Record code-change counters for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionChanges,
}

var sessionDoneCmd = &cobra.Command{
	Use:   "done <session-id>",
	Short: "Finish a session (completed unless --status says otherwise)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDone,
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		m, err := c.StartSession(id, sessionObjectives)
		if err != nil {
			return err
		}
		fmt.Printf("Session started: %s (%d objectives)\n", m.SessionID, len(m.Objectives))
		return nil
	})
}

func runSessionUpdate(cmd *cobra.Command, args []string) error {
	update := types.SessionUpdate{}
	if sessionStatus != "" {
		status := types.SessionStatus(sessionStatus)
		update.Status = &status
	}
	if len(sessionObjectives) > 0 {
		update.Objectives = sessionObjectives
	}
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		return c.UpdateSession(args[0], update)
	})
}

func runSessionError(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		return c.RecordSessionError(args[0], errType, args[1])
	})
}

func runSessionGate(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		return c.RecordQualityGate(args[0], args[1], !gateFailed)
	})
}

func runSessionObjective(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		return c.CompleteObjective(args[0], args[1])
	})
}

func runSessionChanges(cmd *cobra.Command, args []string) error {
	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		return c.RecordCodeChanges(args[0], changeFiles, changeAdded, changeRemoved, changeCommits)
	})
}

func runSessionDone(cmd *cobra.Command, args []string) error {
	status := types.SessionCompleted
	if sessionStatus != "" {
		status = types.SessionStatus(sessionStatus)
	}
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", types.ErrInvalidCriteria, status)
	}

	return withCoordinator(func(ctx context.Context, c *intelligence.Coordinator) error {
		if err := c.UpdateSession(args[0], types.SessionUpdate{Status: &status}); err != nil {
			return err
		}
		m, err := c.GetSession(args[0])
		if err != nil {
			return err
		}
		if m.Duration != nil {
			fmt.Printf("Session %s %s after %v\n", m.SessionID, m.Status, m.Duration.Round(time.Second))
		} else {
			fmt.Printf("Session %s %s\n", m.SessionID, m.Status)
		}
		return nil
	})
}

func init() {
	sessionStartCmd.Flags().StringSliceVarP(&sessionObjectives, "objectives", "o", nil, "declared objectives")
	sessionUpdateCmd.Flags().StringVar(&sessionStatus, "status", "", "new status (running, completed, failed, cancelled)")
	sessionUpdateCmd.Flags().StringSliceVarP(&sessionObjectives, "objectives", "o", nil, "replace declared objectives")
	sessionErrorCmd.Flags().StringVarP(&errType, "type", "t", "general", "error type")
	sessionGateCmd.Flags().BoolVar(&gateFailed, "failed", false, "record the gate as failed")
	sessionChangesCmd.Flags().IntVar(&changeFiles, "files", 0, "files changed")
	sessionChangesCmd.Flags().IntVar(&changeAdded, "added", 0, "lines added")
	sessionChangesCmd.Flags().IntVar(&changeRemoved, "removed", 0, "lines removed")
	sessionChangesCmd.Flags().IntVar(&changeCommits, "commits", 0, "commits")
	sessionDoneCmd.Flags().StringVar(&sessionStatus, "status", "", "terminal status (completed, failed, cancelled)")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionUpdateCmd)
	sessionCmd.AddCommand(sessionErrorCmd)
	sessionCmd.AddCommand(sessionGateCmd)
	sessionCmd.AddCommand(sessionObjectiveCmd)
	sessionCmd.AddCommand(sessionChangesCmd)
	sessionCmd.AddCommand(sessionDoneCmd)
}
