package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickjot/quickjot/note"
)

// commandTimeout bounds one-shot CLI operations, including the LLM call.
const commandTimeout = 2 * time.Minute

func addCmd() *cobra.Command {
	var (
		dbPath   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Capture a note and classify it",
		Long: `Add captures a note into the local database. Without --category the
note is classified by the configured LLM; with --category the label is
set directly and no LLM call is made.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(strings.Join(args, " "), category, dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&category, "category", "", "Skip classification and set this category")

	return cmd
}

func runAdd(content, category, dbPath string) error {
	a, err := newApp(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if category != "" {
		cat := note.Category(category)
		if !cat.IsValid() {
			return fmt.Errorf("invalid category: %s", category)
		}
		n, err := a.db.CreateNote(ctx, content, note.SourceManual, cat)
		if err != nil {
			return err
		}
		return printJSON(n)
	}

	n, err := a.db.CreateNote(ctx, content, note.SourceAuto, "")
	if err != nil {
		return err
	}
	result, err := a.pipeline.Classify(ctx, n.ID, n.Content)
	if err != nil {
		return err
	}

	n.Category = result.Category
	n.Metadata = result.Metadata
	return printJSON(n)
}

func searchCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search notes by content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

func runSearch(query, dbPath string) error {
	a, err := newApp(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	notes, err := a.db.SearchNotes(ctx, query)
	if err != nil {
		return err
	}
	return printJSON(notes)
}

func costsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show LLM usage costs for the last 30 days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCosts(dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

func runCosts(dbPath string) error {
	a, err := newApp(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	summary, err := a.db.Costs(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
