package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/internal/queue"
)

func NewSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [url]",
		Short: "Validate a target URL and enqueue it for scanning",
		Long: `Normalize and validate the target URL, create a scan record and enqueue
a scan job. Workers pick the job up asynchronously; use "status" to follow it.`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}
	cmd.Flags().Bool("no-dns-precheck", false, "Skip the DNS resolvability check before enqueueing")
	_ = viper.BindPFlag("submit.no_dns_precheck", cmd.Flags().Lookup("no-dns-precheck"))
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	precheck := a.cfg.Submit.DNSPrecheck && !viper.GetBool("submit.no_dns_precheck")
	submitter := queue.NewSubmitter(a.jobs, a.scans, a.resolver(), precheck, a.logger)

	rec, job, err := submitter.Submit(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Scan submitted\n")
	fmt.Printf("  scan id: %s\n", rec.ID)
	fmt.Printf("  job id:  %s\n", job.ID)
	fmt.Printf("  url:     %s\n", rec.URL)
	return nil
}
