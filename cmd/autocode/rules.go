package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect learned rules",
	}
	cmd.AddCommand(rulesListCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's learned rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetRulesForTenant(ctx, tenantID)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("no rules learned yet"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tASSIGNMENT\tCONFIDENCE\tBOOST\tSUPPORT\tCREATED")
			for _, rule := range rules {
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%d\t%s\n",
					rule.Signature, rule.Assignment.String(),
					rule.Confidence, rule.Boost, rule.SupportCount,
					rule.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("tenant", "", "tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
