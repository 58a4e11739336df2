package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studypath/studypath/internal/breaker"
	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/config"
	"github.com/studypath/studypath/internal/database"
	"github.com/studypath/studypath/internal/marksync"
	"github.com/studypath/studypath/internal/students"
)

var (
	credentialsPath string
	outputPath      string
	syncDB          bool
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "marksync",
	Short: "Export student marks from the portal as a recommender dataset",
	Long: "Logs each student from a student_id,password CSV into the portal, fetches their marks " +
		"and writes a student_id,course,score,semester history CSV. Portal settings come from the same " +
		"environment as the API server.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&credentialsPath, "credentials", "c", "", "CSV of student_id,password pairs (required)")
	rootCmd.Flags().StringVarP(&outputPath, "out", "o", "-", "Output CSV path, - for stdout")
	rootCmd.Flags().BoolVar(&syncDB, "db", false, "Also upsert students and grades into Postgres")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log each student")
	_ = rootCmd.MarkFlagRequired("credentials")
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	in, err := os.Open(credentialsPath)
	if err != nil {
		return fmt.Errorf("opening credentials: %w", err)
	}
	creds, err := marksync.ReadCredentials(in)
	in.Close()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}

	portal := source.New(cfg.Source, breaker.New("source", breaker.DefaultSettings()))
	sum, err := marksync.NewSyncer(portal, store).Run(ctx, creds, out)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = fmt.Errorf("closing output: %w", cerr)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "synced %d/%d students, %d rows\n", sum.Students-sum.Failed, sum.Students, sum.Rows)
	return nil
}

// openStore connects to Postgres when --db is set. A nil store keeps the
// run CSV-only.
func openStore(ctx context.Context, cfg config.DBConfig) (marksync.Store, func(), error) {
	if !syncDB {
		return nil, func() {}, nil
	}
	pool, err := database.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := database.RunMigrations(cfg.DSN(), cfg.MigrationsPath); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return students.NewService(students.NewRepository(pool)), pool.Close, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	return f, f.Close, nil
}
