package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one batch job
// over every target in the configuration.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls all configured targets as one batch job",
		Long: `Runs a single batch job over the targets listed in the configuration,
recording per-target outcomes and job progress, then prints a summary.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}

	summary, err := a.orch.RunJob(cmd.Context(), a.cfg.Targets)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	a.logger.Info("job summary",
		zap.String("job_id", summary.JobID.String()),
		zap.String("status", string(summary.Status)),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)

	fmt.Printf("job %s %s: %d/%d targets succeeded in %s\n",
		summary.JobID, summary.Status, summary.Succeeded, summary.Total, summary.Duration.Round(0))
	return nil
}
