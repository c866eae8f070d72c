package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
	"github.com/quillbooks/autocode/internal/model"
	"github.com/quillbooks/autocode/internal/ofx"
	"github.com/quillbooks/autocode/internal/router"
)

// routeChunkSize is how many transactions each engine call covers; the
// progress bar advances per chunk.
const routeChunkSize = 25

func routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route transactions to coded decisions",
		Long: `Read transactions from a JSON or OFX/QFX file and route each one to a
scored accounting-code decision. Decisions at or above the confidence
threshold are auto-applied; the rest are queued for review.`,
		RunE: runRoute,
	}

	cmd.Flags().String("tenant", "", "tenant ID (required)")
	cmd.Flags().String("input", "", "JSON file of transactions")
	cmd.Flags().String("ofx", "", "OFX/QFX statement file")
	cmd.Flags().Bool("json", false, "emit the full batch result as JSON")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runRoute(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	inputPath, _ := cmd.Flags().GetString("input")
	ofxPath, _ := cmd.Flags().GetString("ofx")
	asJSON, _ := cmd.Flags().GetBool("json")

	items, err := loadTransactions(inputPath, ofxPath)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no transactions to route"))
		return nil
	}

	ctx := cmd.Context()
	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := cli.NewProgressBar(os.Stderr, len(items), "Routing transactions...")

	combined := &router.BatchResult{}
	for start := 0; start < len(items); start += routeChunkSize {
		end := start + routeChunkSize
		if end > len(items) {
			end = len(items)
		}

		result, err := eng.RouteDecisions(ctx, tenantID, items[start:end])
		if err != nil {
			return err
		}
		combined.Items = append(combined.Items, result.Items...)
		_ = bar.Add(end - start)
	}
	combined.Stats = mergeStats(combined.Items)

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(combined)
	}

	printBatchSummary(combined)
	return nil
}

// mergeStats recomputes batch statistics over the combined item list.
func mergeStats(items []router.ItemResult) router.BatchStats {
	stats := router.BatchStats{Total: len(items)}
	var confidenceSum float64
	var ruleResolved, inferenceOnly int

	for _, item := range items {
		switch item.Status {
		case model.StatusAutoApplied:
			stats.AutoApplied++
		case model.StatusReviewRequired:
			stats.ReviewRequired++
		case model.StatusFailed:
			stats.Failed++
			continue
		}
		confidenceSum += item.Confidence
		switch item.Source {
		case model.SourcePattern, model.SourceHybrid:
			ruleResolved++
		case model.SourceInference:
			inferenceOnly++
		}
	}

	if persisted := stats.Total - stats.Failed; persisted > 0 {
		stats.AvgConfidence = confidenceSum / float64(persisted)
		stats.RuleResolved = float64(ruleResolved) / float64(persisted)
		stats.InferenceOnly = float64(inferenceOnly) / float64(persisted)
	}
	return stats
}

func loadTransactions(inputPath, ofxPath string) ([]model.TransactionInput, error) {
	switch {
	case inputPath != "" && ofxPath != "":
		return nil, fmt.Errorf("use either --input or --ofx, not both")
	case inputPath != "":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		var items []model.TransactionInput
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}
		return items, nil
	case ofxPath != "":
		f, err := os.Open(ofxPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open OFX file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return ofx.NewParser().ParseFile(f)
	default:
		return nil, fmt.Errorf("one of --input or --ofx is required")
	}
}

func printBatchSummary(result *router.BatchResult) {
	stats := result.Stats

	var b strings.Builder
	fmt.Fprintf(&b, "Total:           %d\n", stats.Total)
	fmt.Fprintf(&b, "Auto-applied:    %s\n", cli.SuccessStyle.Render(fmt.Sprintf("%d", stats.AutoApplied)))
	fmt.Fprintf(&b, "Review required: %s\n", cli.WarningStyle.Render(fmt.Sprintf("%d", stats.ReviewRequired)))
	fmt.Fprintf(&b, "Failed:          %s\n", cli.ErrorStyle.Render(fmt.Sprintf("%d", stats.Failed)))
	fmt.Fprintf(&b, "Avg confidence:  %.1f\n", stats.AvgConfidence)
	fmt.Fprintf(&b, "Rule resolved:   %.0f%%\n", stats.RuleResolved*100)
	fmt.Fprintf(&b, "Inference only:  %.0f%%", stats.InferenceOnly*100)

	fmt.Println(cli.RenderBox("Routing summary", b.String()))

	for _, item := range result.Items {
		if item.Status == model.StatusFailed {
			fmt.Println(cli.FormatError(fmt.Sprintf("%s: %s", item.ExternalID, item.Error)))
		}
	}
}
