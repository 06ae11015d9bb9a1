package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/loan-desk/internal/importer"
	"github.com/sells-group/loan-desk/internal/lifecycle"
	"github.com/sells-group/loan-desk/internal/model"
)

// printer groups thousands in amounts shown to operators.
var printer = message.NewPrinter(language.English)

var loanCmd = &cobra.Command{
	Use:   "loan",
	Short: "Drive a loan request through its lifecycle",
}

// -- loan submit --

var loanSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new loan request",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		userID, _ := cmd.Flags().GetInt64("user-id")
		id, err := env.Engine.Submit(ctx, userID, featuresFromFlags(cmd.Flags()))
		if err != nil {
			return eris.Wrap(err, "loan submit")
		}
		_, _ = printer.Fprintf(cmd.OutOrStdout(), "%s (request %d)\n", lifecycle.MsgSubmitted, id)
		return nil
	},
}

// -- loan evaluate --

var loanEvaluateCmd = &cobra.Command{
	Use:   "evaluate <request-id>",
	Short: "Run the eligibility classifier on a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseRequestID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Engine.EvaluateEligibility(ctx, id)
		if err != nil {
			return eris.Wrap(err, "loan evaluate")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", out.Status, out.Message)
		return nil
	},
}

// -- loan quote --

var loanQuoteCmd = &cobra.Command{
	Use:   "quote <request-id>",
	Short: "Price a request and send the offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseRequestID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := env.Engine.GenerateQuote(ctx, id)
		if err != nil {
			return eris.Wrap(err, "loan quote")
		}
		w := cmd.OutOrStdout()
		_, _ = printer.Fprintf(w, "%s (quote %d)\n", lifecycle.MsgQuoted, q.QuoteID)
		_, _ = printer.Fprintf(w, "  amount:   %d over %d months\n", q.ApprovedAmount, q.TermMonths)
		_, _ = printer.Fprintf(w, "  rate:     %.1f%%\n", q.InterestRate)
		_, _ = printer.Fprintf(w, "  interest: %.2f\n", q.TotalInterest)
		_, _ = printer.Fprintf(w, "  emi:      %.2f\n", q.EMIAmount)
		return nil
	},
}

// -- loan accept --

var loanAcceptCmd = &cobra.Command{
	Use:   "accept <request-id>",
	Short: "Accept the offer sent for a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseRequestID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Engine.AcceptOffer(ctx, id); err != nil {
			return eris.Wrap(err, "loan accept")
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), lifecycle.MsgAccepted)
		return nil
	},
}

// -- loan disburse --

var loanDisburseCmd = &cobra.Command{
	Use:   "disburse <request-id>",
	Short: "Disburse an accepted loan and open its account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseRequestID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		acct, err := env.Engine.Disburse(ctx, id)
		if err != nil {
			return eris.Wrap(err, "loan disburse")
		}
		_, _ = printer.Fprintf(cmd.OutOrStdout(), "%s (account %d, principal %d, started %s)\n",
			lifecycle.MsgDisbursed, acct.AccountID, acct.PrincipalBalance, acct.StartDate)
		return nil
	},
}

// -- loan import --

var loanImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Submit every applicant row from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src, err := importer.FileSource(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		userID, _ := cmd.Flags().GetInt64("user-id")
		res, err := importer.Import(ctx, src, env.Engine, userID)
		if res != nil {
			w := cmd.OutOrStdout()
			_, _ = printer.Fprintf(w, "Submitted %d loan requests, %d rows rejected\n", len(res.Submitted), len(res.Failed))
			for _, f := range res.Failed {
				_, _ = fmt.Fprintf(w, "  row %d: %v\n", f.Row, f.Err)
			}
		}
		if err != nil {
			return eris.Wrap(err, "loan import")
		}
		return nil
	},
}

func parseRequestID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, eris.Errorf("invalid request id %q", s)
	}
	return id, nil
}

// flagName maps a feature key to its command-line flag.
func flagName(feature string) string {
	return strings.ReplaceAll(feature, "_", "-")
}

// addFeatureFlags registers one integer flag per feature.
func addFeatureFlags(fs *pflag.FlagSet) {
	for _, name := range model.FeatureNames {
		fs.Int64(flagName(name), 0, strings.ReplaceAll(name, "_", " "))
	}
}

// featuresFromFlags collects the features that were set on the command
// line. Unset flags stay missing so validation can report them.
func featuresFromFlags(fs *pflag.FlagSet) model.RawFeatures {
	var raw model.RawFeatures
	for _, name := range model.FeatureNames {
		f := fs.Lookup(flagName(name))
		if f == nil || !f.Changed {
			continue
		}
		raw.Set(name, json.RawMessage(f.Value.String()))
	}
	return raw
}

func init() {
	addFeatureFlags(loanSubmitCmd.Flags())
	loanSubmitCmd.Flags().Int64("user-id", 1, "customer user id")
	loanImportCmd.Flags().Int64("user-id", 1, "user id for rows without a user_id column")

	loanCmd.AddCommand(loanSubmitCmd, loanEvaluateCmd, loanQuoteCmd, loanAcceptCmd, loanDisburseCmd, loanImportCmd)
	rootCmd.AddCommand(loanCmd)
}
