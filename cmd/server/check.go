package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/payment-ledger/ledger"
	"github.com/warp/payment-ledger/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check stored invoices against their payments",
	Long: `Recompute every invoice's balance and status from its payments and
report invoices whose stored values disagree. Nothing is written.

Exits non-zero when a discrepancy is found.`,
	Example: `  ledgerd check
  ledgerd check --invoice 42`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Int64("invoice", 0, "Check a single invoice")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("check")
	invoiceID, _ := cmd.Flags().GetInt64("invoice")

	svc, store, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var report ledger.CheckReport
	if invoiceID > 0 {
		d, err := svc.CheckInvoice(cmd.Context(), ledger.InvoiceID(invoiceID))
		if err != nil {
			return err
		}
		report.Checked = 1
		if d != nil {
			report.Discrepancies = append(report.Discrepancies, *d)
		}
	} else {
		report, err = svc.CheckInvoices(cmd.Context())
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, d := range report.Discrepancies {
		fmt.Fprintf(out, "invoice %d: %s\n", d.InvoiceID, strings.Join(d.Problems(), "; "))
	}
	log.Info().
		Int("checked", report.Checked).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("check finished")

	if n := len(report.Discrepancies); n > 0 {
		return fmt.Errorf("%d of %d invoices inconsistent", n, report.Checked)
	}
	return nil
}
