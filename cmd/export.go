package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/loan-desk/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write requests, quotes and accounts to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Engine.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		out, _ := cmd.Flags().GetString("out")
		if err := export.WriteFile(doc, out); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("path", out),
			zap.Int("requests", len(doc.LoanRequests)),
			zap.Int("quotes", len(doc.LoanQuotes)),
			zap.Int("accounts", len(doc.LoanAccounts)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "loans.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
