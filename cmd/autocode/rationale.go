package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
)

func rationaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rationale",
		Short: "Inspect stored decision reasoning",
	}
	cmd.AddCommand(rationaleGetCmd())
	cmd.AddCommand(rationaleSimilarCmd())
	return cmd
}

func rationaleGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <decision-id>",
		Short: "Show the reasoning stored for a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")

			ctx := cmd.Context()
			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			text, ok := eng.GetRationale(ctx, tenantID, args[0])
			if !ok {
				fmt.Println(cli.SubtleStyle.Render("no stored reasoning for that decision"))
				return nil
			}

			fmt.Println(cli.RenderBox("Reasoning", text))
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func rationaleSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <query text>",
		Short: "Find decisions with similar reasoning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			eng, store, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			matches := eng.FindSimilarRationale(ctx, tenantID, strings.Join(args, " "), limit)
			if len(matches) == 0 {
				fmt.Println(cli.SubtleStyle.Render("no similar reasoning found"))
				return nil
			}

			for _, match := range matches {
				header := fmt.Sprintf("%s (similarity %.2f)", match.DecisionID, match.Similarity)
				fmt.Println(cli.BoldStyle.Render(header))
				fmt.Println(cli.SubtleStyle.Render(match.Text))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant ID (required)")
	cmd.Flags().Int("limit", 5, "maximum matches")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
