package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
	"github.com/quillbooks/autocode/internal/engine"
	"github.com/quillbooks/autocode/internal/model"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <decision-id>",
		Short: "Record a human correction for a decision",
		Long: `Override a decision's assignment. The original decision stays in the
audit trail; the correction is recorded alongside it and feeds the
pattern learner. Three agreeing corrections for the same counterparty
create a deterministic rule.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}

	cmd.Flags().String("tenant", "", "tenant ID (required)")
	cmd.Flags().String("code", "", "corrected account code (required)")
	cmd.Flags().String("sub-code", "", "corrected sub-code")
	cmd.Flags().String("tax", "", "corrected tax treatment")
	cmd.Flags().String("by", "", "reviewer identifier")
	cmd.Flags().String("reason", "", "free-text reason")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runCorrect(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	code, _ := cmd.Flags().GetString("code")
	subCode, _ := cmd.Flags().GetString("sub-code")
	tax, _ := cmd.Flags().GetString("tax")
	by, _ := cmd.Flags().GetString("by")
	reason, _ := cmd.Flags().GetString("reason")
	if by == "" {
		if u, err := user.Current(); err == nil {
			by = u.Username
		} else {
			by = "cli"
		}
	}

	ctx := cmd.Context()
	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := eng.RecordCorrection(ctx, engine.CorrectionRequest{
		TenantID:   tenantID,
		DecisionID: args[0],
		Corrected: model.CodeAssignment{
			Code:         code,
			SubCode:      subCode,
			TaxTreatment: tax,
		},
		CorrectorID: by,
		Reason:      reason,
	})
	if err != nil {
		return err
	}

	switch {
	case result.Replayed:
		fmt.Println(cli.SubtleStyle.Render("correction was already recorded; nothing changed"))
	case result.PatternCreated:
		fmt.Println(cli.FormatSuccess("correction recorded, new rule learned"))
	case result.Conflict:
		fmt.Println(cli.FormatWarning("correction recorded, but it conflicts with an existing rule"))
	default:
		fmt.Println(cli.FormatSuccess("correction recorded"))
	}
	return nil
}
