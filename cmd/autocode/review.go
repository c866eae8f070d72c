package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
	"github.com/quillbooks/autocode/internal/model"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "List decisions awaiting human review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			decisions, err := store.GetDecisionsByStatus(ctx, tenantID, model.StatusReviewRequired, limit)
			if err != nil {
				return fmt.Errorf("failed to list review queue: %w", err)
			}

			if len(decisions) == 0 {
				fmt.Println(cli.FormatSuccess("review queue is empty"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DECISION\tCOUNTERPARTY\tAMOUNT\tASSIGNMENT\tCONFIDENCE\tSOURCE")
			for _, d := range decisions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%s\n",
					d.ID, d.Counterparty, formatCents(d.AmountCents),
					d.Assignment.String(), d.Confidence, d.Source)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("tenant", "", "tenant ID (required)")
	cmd.Flags().Int("limit", 50, "maximum decisions to list")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
