package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-assistant/internal/archive"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/vector"
)

var dbPath string

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "finassist",
		Short: "AI finance assistant",
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "ledger database path")

	rootCmd.AddCommand(processCmd(cfg))
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(exportSnapshotCmd(cfg))
	rootCmd.AddCommand(archiveStatusCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	return store.New(dbPath)
}

func processCmd(cfg *config.Config) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "process [text]",
		Short: "Process a financial statement, balance update, or question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			ctx := context.Background()
			log := logger.New()

			ledger, err := openStore()
			if err != nil {
				return err
			}
			defer ledger.Close()

			// The CLI keeps its semantic index in memory; mirrored vectors
			// only live for the invocation, which is fine for advisory data.
			var gen assistant.TextGenerator
			if gemini, err := assistant.NewGeminiGenerator(ctx, cfg.GeminiModel); err != nil {
				fmt.Printf("(Gemini unavailable, using fallbacks: %v)\n", err)
			} else {
				gen = gemini
			}

			svc := assistant.New(
				assistant.NewClassifier(gen, log),
				assistant.NewAdviceGenerator(gen, log),
				ledger,
				vector.NewInMemoryIndex(),
				vector.NewHashEmbedder(),
				log,
			)

			result, err := svc.ProcessInput(ctx, userID, text)
			if err != nil {
				return err
			}

			fmt.Println(result.Message)
			if result.Advice != "" {
				fmt.Println("\nAdvice:", result.Advice)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	return cmd
}

func summaryCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show a user's financial summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ledger, err := openStore()
			if err != nil {
				return err
			}
			defer ledger.Close()

			balance, err := ledger.GetBalance(ctx, userID)
			if err != nil {
				return err
			}

			commitments, err := ledger.ListRecentCommitments(ctx, userID, 10)
			if err != nil {
				return err
			}

			var total float64
			for _, c := range commitments {
				total += c.Amount
			}

			fmt.Printf("Current balance: $%.2f\n", balance)
			fmt.Printf("Commitments (%d, $%.2f total):\n", len(commitments), total)
			for _, c := range commitments {
				date := "no date"
				if c.CommitmentDate != nil {
					date = c.CommitmentDate.Format("2006-01-02")
				}
				fmt.Printf("  - %s: $%.2f (%s)\n", c.Description, c.Amount, date)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	return cmd
}

func historyCmd() *cobra.Command {
	var userID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's event history, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := openStore()
			if err != nil {
				return err
			}
			defer ledger.Close()

			events, err := ledger.ListHistory(context.Background(), userID, limit)
			if err != nil {
				return err
			}

			for _, ev := range events {
				fmt.Printf("%s  %-20s  %s\n",
					ev.CreatedAt.Format("2006-01-02 15:04"), ev.InputType, ev.RawInput)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	return cmd
}

func exportSnapshotCmd(cfg *config.Config) *cobra.Command {
	var userID string
	var bucket string

	cmd := &cobra.Command{
		Use:   "export-snapshot",
		Short: "Upload a JSON snapshot of a user's history to GCS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				return fmt.Errorf("a GCS bucket is required (--bucket or GCS_BUCKET)")
			}

			ctx := context.Background()

			ledger, err := openStore()
			if err != nil {
				return err
			}
			defer ledger.Close()

			events, err := ledger.ListHistory(ctx, userID, 200)
			if err != nil {
				return err
			}

			objectName := archive.SnapshotObjectName(userID, time.Now().UTC())
			if err := archive.UploadSnapshot(ctx, bucket, objectName, userID, events); err != nil {
				return err
			}

			fmt.Printf("Uploaded %d events to gs://%s/%s\n", len(events), bucket, objectName)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().StringVar(&bucket, "bucket", cfg.GCSBucket, "GCS bucket name")
	return cmd
}

func archiveStatusCmd(cfg *config.Config) *cobra.Command {
	var userID string
	var project string

	cmd := &cobra.Command{
		Use:   "archive-status",
		Short: "Compare local event count with the BigQuery archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("a BigQuery project is required (--project or BQ_PROJECT)")
			}

			ctx := context.Background()

			ledger, err := openStore()
			if err != nil {
				return err
			}
			defer ledger.Close()

			events, err := ledger.ListHistory(ctx, userID, 200)
			if err != nil {
				return err
			}

			exporter, err := archive.NewExporter(ctx, project, cfg.BQDataset, logger.New())
			if err != nil {
				return err
			}
			defer exporter.Close()

			archived, err := exporter.CountExported(ctx, userID)
			if err != nil {
				return err
			}

			fmt.Printf("Local events (up to 200): %d\n", len(events))
			fmt.Printf("Archived events: %d\n", archived)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	cmd.Flags().StringVar(&project, "project", cfg.BQProject, "BigQuery project id")
	return cmd
}
