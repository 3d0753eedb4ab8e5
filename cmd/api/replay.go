package main

import (
	"fmt"

	"loan-ledger/internal/config"
	"loan-ledger/internal/ledger"

	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var audit bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the ledger from its journal and report what was found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.StoreDriver == config.DriverMemory {
				return errNoJournal
			}
			journal, closeStore, err := openJournal(cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			l := ledger.New(journal, ledger.WithLogger(log))
			n, err := l.Replay(cmd.Context())
			if err != nil {
				return fmt.Errorf("after %d entries: %w", n, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries: %d\nloans: %d\n", n, l.Len())
			if !audit {
				return nil
			}

			var failed error
			checked := 0
			for rec := range l.Snapshot().All() {
				if err := l.AuditRecord(cmd.Context(), rec); err != nil {
					failed = fmt.Errorf("loan %s: %w", rec.LoanID, err)
					break
				}
				checked++
			}
			fmt.Fprintf(out, "audited: %d\n", checked)
			return failed
		},
	}
	cmd.Flags().BoolVar(&audit, "audit", false, "also re-fold every loan's entries against the rebuilt record")
	return cmd
}
