package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/pushwatch/internal/infra/storage/postgres"
)

var (
	statusBranch string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent classification outcomes for a branch",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusBranch, "branch", "", "branch to show (defaults to the first configured branch)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of records to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("Status requires a database in the config")
		os.Exit(1)
	}
	branch := statusBranch
	if branch == "" {
		if len(cfg.Branches) == 0 {
			slog.Error("No branches configured")
			os.Exit(1)
		}
		branch = cfg.Branches[0].Name
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	records, err := postgres.NewClassificationRepo(db).Latest(ctx, branch, statusLimit)
	if err != nil {
		slog.Error("Failed to query classifications", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "REV\tSTATUS\tREAL\tINTERMITTENT\tUNKNOWN\tCLASSIFIED")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%.12s\t%s\t%d\t%d\t%d\t%s\n",
			rec.Rev, rec.Status,
			len(rec.Real), len(rec.Intermittent), len(rec.Unknown),
			rec.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
