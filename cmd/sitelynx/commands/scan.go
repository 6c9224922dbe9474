package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/internal/crawl"
	"github.com/bl4ck0w1/sitelynx/internal/detectors"
	"github.com/bl4ck0w1/sitelynx/internal/scoring"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Scan one URL immediately, bypassing the queue",
		Long: `Run the full crawl/detect/score pipeline against a single URL in the
foreground and print the result. Nothing is persisted; use "submit" for
queued, persisted scans.`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}
	cmd.Flags().Bool("json", false, "Print the full breakdown and findings as JSON")
	_ = viper.BindPFlag("scan.json", cmd.Flags().Lookup("json"))
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	target, err := utils.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Worker.JobTimeout)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("interrupt received, aborting scan")
		cancel()
	}()

	orchestrator := crawl.NewOrchestrator(a.cfg.Crawl, nil, a.logger)
	defer orchestrator.Close()

	result := orchestrator.Crawl(ctx, target)
	if !result.Success {
		return fmt.Errorf("crawl failed (%s): %s", result.FetchMethod, result.Error)
	}

	registry := detectors.DefaultRegistry(a.resolver(), a.logger)
	findings, meta := registry.Run(ctx, result)
	breakdown := scoring.NewEngine(a.logger).Score(findings, meta)

	if viper.GetBool("scan.json") {
		out := map[string]interface{}{
			"url":          target,
			"final_url":    result.FinalURL,
			"fetch_method": result.FetchMethod,
			"load_time_ms": result.LoadTimeMs,
			"score":        breakdown,
			"findings":     findings,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Target:       %s\n", result.FinalURL)
	fmt.Printf("Fetch method: %s (%dms)\n", result.FetchMethod, result.LoadTimeMs)
	fmt.Printf("Score:        %d/100 (%s, grade %s)\n", breakdown.OverallScore, breakdown.RiskLevel, breakdown.Grade)
	fmt.Printf("Findings:     %d total (%d critical, %d high, %d medium, %d low)\n",
		breakdown.Summary.TotalFindings, breakdown.Summary.CriticalFindings,
		breakdown.Summary.HighFindings, breakdown.Summary.MediumFindings, breakdown.Summary.LowFindings)
	fmt.Println()
	for _, cat := range breakdown.Categories {
		status := fmt.Sprintf("%.0f/100", cat.Score)
		if !cat.Applicable {
			status = "n/a"
		}
		fmt.Printf("  %-26s %8s  (weight %.0f%%, %d findings)\n",
			cat.Category, status, cat.Weight*100, cat.FindingCount)
	}
	if len(findings) > 0 {
		fmt.Println()
		for _, f := range findings {
			fmt.Printf("  [%s] %s\n", f.Severity, f.Title)
		}
	}
	return nil
}
