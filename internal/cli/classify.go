package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vietddude/pushwatch/internal/core/config"
	"github.com/vietddude/pushwatch/internal/core/domain"
	"github.com/vietddude/pushwatch/internal/infra/queue"
	"github.com/vietddude/pushwatch/internal/infra/vcs"
	"github.com/vietddude/pushwatch/internal/triage/classify"
	"github.com/vietddude/pushwatch/internal/triage/evidence"
	"github.com/vietddude/pushwatch/internal/triage/lineage"
	"github.com/vietddude/pushwatch/internal/triage/push"
)

var classifyBranch string

var classifyCmd = &cobra.Command{
	Use:   "classify <rev>",
	Short: "Classify one push and print the verdicts",
	Long:  `Classify resolves a revision to a push, evaluates every failing test group against the available evidence, and prints the verdicts and the recommended follow-up runs. It never writes to storage.`,
	Args:  cobra.ExactArgs(1),
	Run:   runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyBranch, "branch", "", "branch the revision lives on (defaults to the first configured branch)")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	branch, window := branchSettings(cfg)
	log := slog.Default()

	queueClient := queue.NewClient(cfg.Queue, log)
	sources := []evidence.Source{evidence.NewArtifactSource(queueClient)}
	if cfg.Selection.ServiceURL != "" {
		sources = append(sources, evidence.NewServiceSource(
			cfg.Selection.ServiceURL,
			&http.Client{},
			evidence.RetryPolicy{
				MaxAttempts: cfg.Selection.RetryAttempts,
				Interval:    cfg.Selection.RetryInterval,
				Timeout:     cfg.Selection.RetryTimeout,
			},
			log,
		))
	}
	svc := &push.Services{
		VCS:      vcs.NewClient(cfg.VCS, log),
		Queue:    queueClient,
		Evidence: evidence.NewChain(log, sources...),
		Lineage:  lineage.NewResolver(window, log),
		Log:      log,
	}
	engine := classify.NewEngine(classify.Options{
		HighConfidence:         cfg.Selection.HighConfidence,
		UnknownFromRegressions: cfg.Selection.UnknownDefaults(),
		ConsiderSiblingConfigs: cfg.Selection.Siblings(),
	}, log)

	ctx := context.Background()
	p, err := push.New(ctx, svc, branch, args[0])
	if err != nil {
		slog.Error("Failed to resolve push", "branch", branch, "rev", args[0], "error", err)
		os.Exit(1)
	}
	status, regressions, plan, err := engine.Classify(ctx, p)
	if err != nil {
		slog.Error("Classification failed", "rev", p.Rev(), "error", err)
		os.Exit(1)
	}

	fmt.Printf("push %s on %s: %s\n", p.Rev(), branch, status)
	printGroups("real", keys(regressions.Real))
	printGroups("intermittent", keys(regressions.Intermittent))
	printGroups("unknown", keys(regressions.Unknown))
	if !plan.IsEmpty() {
		fmt.Println("recommended runs:")
		printGroups("  retrigger (confirm real)", setKeys(plan.RealRetrigger))
		printGroups("  retrigger (confirm intermittent)", setKeys(plan.IntermittentRetrigger))
		printGroups("  backfill", setKeys(plan.Backfill))
	}
}

func branchSettings(cfg *config.AppConfig) (string, int) {
	if classifyBranch == "" {
		if len(cfg.Branches) == 0 {
			slog.Error("No branches configured")
			os.Exit(1)
		}
		b := cfg.Branches[0]
		return b.Name, b.LineageWindow
	}
	for _, b := range cfg.Branches {
		if b.Name == classifyBranch {
			return b.Name, b.LineageWindow
		}
	}
	return classifyBranch, 0
}

func printGroups(label string, groups []string) {
	if len(groups) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(groups))
	for _, g := range groups {
		fmt.Printf("  %s\n", g)
	}
}

func keys(m map[string][]*domain.Task) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
