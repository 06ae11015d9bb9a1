package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify an applicant without storing anything",
	Long:  "Runs the configured eligibility classifier on the feature flags and prints the decision. The store is not opened.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fv, err := featuresFromFlags(cmd.Flags()).Parse()
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		backend := openClassifier()
		label, err := backend.Predict(fv)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		verdict := "Loan Rejected"
		if label.Approved() {
			verdict = "Loan Approved"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s classifier)\n", verdict, backend.Kind())
		return nil
	},
}

func init() {
	addFeatureFlags(predictCmd.Flags())
	rootCmd.AddCommand(predictCmd)
}
