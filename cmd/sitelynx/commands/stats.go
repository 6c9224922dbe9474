package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/sitelynx/internal/pool"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth, scan totals and active workers",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := context.Background()

	jobCounts, err := a.jobs.Counts(ctx)
	if err != nil {
		return err
	}
	scanCounts, err := a.scans.Counts(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Queue:")
	for _, status := range []models.JobStatus{
		models.JobStatusPending, models.JobStatusProcessing,
		models.JobStatusCompleted, models.JobStatusFailed,
	} {
		fmt.Printf("  %-12s %d\n", status, jobCounts[status])
	}

	fmt.Println("Scans:")
	for _, status := range []models.ScanStatus{
		models.ScanStatusPending, models.ScanStatusScanning,
		models.ScanStatusCompleted, models.ScanStatusFailed,
	} {
		fmt.Printf("  %-12s %d\n", status, scanCounts[status])
	}

	slots, err := pool.NewSlotPool(a.leaseDir(), a.cfg.Worker.MaxWorkers, a.cfg.Worker.MaxRuntime, a.logger)
	if err != nil {
		return err
	}
	active := slots.ActiveSlots()
	fmt.Printf("Workers: %d/%d active\n", len(active), slots.MaxSlots())
	for _, lease := range active {
		fmt.Printf("  slot %-3d pid %-8d heartbeat %s\n", lease.Slot, lease.OwnerPID, lease.Timestamp.Format("15:04:05"))
	}
	return nil
}
