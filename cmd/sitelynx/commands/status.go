package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [scan-id]",
		Short: "Show the status of one scan, or recent scans",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}
	cmd.Flags().IntP("limit", "n", 20, "How many recent scans to list")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := context.Background()

	if len(args) == 1 {
		rec, err := a.scans.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Scan %s\n", rec.ID)
		fmt.Printf("  url:     %s\n", rec.URL)
		fmt.Printf("  status:  %s\n", rec.Status)
		fmt.Printf("  created: %s\n", rec.CreatedAt.Format(time.RFC3339))
		if rec.CompletedAt != nil {
			fmt.Printf("  done:    %s\n", rec.CompletedAt.Format(time.RFC3339))
		}
		switch {
		case rec.Error != "":
			fmt.Printf("  error:   %s\n", rec.Error)
		case rec.Status == "COMPLETED":
			fmt.Printf("  score:   %d/100 (%s, grade %s)\n", rec.RiskScore, rec.RiskLevel, rec.Grade)
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	recent, err := a.scans.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No scans yet.")
		return nil
	}
	fmt.Printf("%-36s  %-10s  %5s  %-8s  %s\n", "SCAN ID", "STATUS", "SCORE", "RISK", "URL")
	for _, rec := range recent {
		score := "-"
		if rec.Status == "COMPLETED" {
			score = fmt.Sprintf("%d", rec.RiskScore)
		}
		fmt.Printf("%-36s  %-10s  %5s  %-8s  %s\n", rec.ID, rec.Status, score, rec.RiskLevel, rec.URL)
	}
	return nil
}
