// Package router produces scored coding decisions for batches of
// transactions, combining learned rules with the inference subsystem.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/inference"
	"github.com/quillbooks/autocode/internal/model"
	"github.com/quillbooks/autocode/internal/service"
)

// Config controls routing behavior.
type Config struct {
	// Threshold is the confidence score at or above which a decision
	// is auto-applied without review.
	Threshold float64
	// Workers bounds how many items are processed concurrently.
	Workers int
	// InferenceTimeout is the hard per-item deadline for the
	// inference call.
	InferenceTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 80
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.InferenceTimeout <= 0 {
		c.InferenceTimeout = 30 * time.Second
	}
}

// ItemResult is the per-item outcome of a routing batch.
type ItemResult struct {
	ExternalID string                `json:"external_id"`
	DecisionID string                `json:"decision_id,omitempty"`
	Status     model.RoutingStatus   `json:"status"`
	Source     model.DecisionSource  `json:"source,omitempty"`
	Assignment model.CodeAssignment  `json:"assignment,omitempty"`
	Rationale  string                `json:"rationale,omitempty"`
	Error      string                `json:"error,omitempty"`
	Confidence float64               `json:"confidence"`
}

// BatchStats aggregates a routing batch.
type BatchStats struct {
	Total          int     `json:"total"`
	AutoApplied    int     `json:"auto_applied"`
	ReviewRequired int     `json:"review_required"`
	Failed         int     `json:"failed"`
	AvgConfidence  float64 `json:"avg_confidence"`
	// RuleResolved is the fraction of persisted decisions a rule
	// resolved or boosted; InferenceOnly is the remainder.
	RuleResolved  float64 `json:"rule_resolved"`
	InferenceOnly float64 `json:"inference_only"`
}

// BatchResult is what a routing call returns to the caller.
type BatchResult struct {
	Items []ItemResult `json:"items"`
	Stats BatchStats   `json:"stats"`
}

// Router routes transactions to scored decisions.
type Router struct {
	store     service.Storage
	inference inference.Client
	cfg       Config
}

// New creates a Router with defaults applied.
func New(store service.Storage, client inference.Client, cfg Config) *Router {
	cfg.applyDefaults()
	return &Router{store: store, inference: client, cfg: cfg}
}

// Route processes a batch of transactions for one tenant. An unknown
// tenant rejects the whole call; any other failure affects only its
// item. Items run concurrently up to the configured worker limit, and
// every persisted decision's audit write completes before the batch
// returns.
func (r *Router) Route(ctx context.Context, tenantID string, items []model.TransactionInput) (*BatchResult, error) {
	if _, err := r.store.GetTenant(ctx, tenantID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownTenant, tenantID)
		}
		return nil, fmt.Errorf("failed to verify tenant: %w", err)
	}

	rules, err := r.store.GetRulesForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	matcher := newRuleMatcher(rules)

	results := make([]ItemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = r.routeOne(gctx, tenantID, matcher, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Items: results}
	result.Stats = computeStats(results)
	return result, nil
}

// routeOne handles a single transaction. Failures stay inside the
// returned ItemResult; a FAILED item leaves no decision row behind.
func (r *Router) routeOne(ctx context.Context, tenantID string, matcher *ruleMatcher, item model.TransactionInput) ItemResult {
	if item.ExternalID == "" {
		return failedResult(item, "missing external transaction ID")
	}
	if item.Signature() == "" {
		return failedResult(item, "missing counterparty and description")
	}

	rule := matcher.match(item)

	var decision *model.Decision
	if rule != nil && isExact(rule, item) && rule.Confidence >= r.cfg.Threshold {
		decision = r.decisionFromRule(tenantID, item, rule)
	} else {
		var failure string
		decision, failure = r.decisionFromInference(ctx, tenantID, item, rule)
		if failure != "" {
			return failedResult(item, failure)
		}
	}

	if err := r.store.SaveDecision(ctx, decision); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			// Idempotent replay: report the decision made the first time.
			if existing, lookupErr := r.store.GetDecisionByExternalID(ctx, tenantID, item.ExternalID); lookupErr == nil {
				return resultFromDecision(existing)
			}
		}
		return failedResult(item, fmt.Sprintf("audit write failed: %v", err))
	}

	return resultFromDecision(decision)
}

// decisionFromRule resolves an item from an exact-signature rule
// without paying for an inference call.
func (r *Router) decisionFromRule(tenantID string, item model.TransactionInput, rule *model.Rule) *model.Decision {
	rationale := fmt.Sprintf(
		"Transactions from %s are coded %s per a learned rule supported by %d corrections.",
		item.Counterparty, rule.Assignment.String(), rule.SupportCount)

	return &model.Decision{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		ExternalID:   item.ExternalID,
		Fingerprint:  item.Fingerprint(),
		Counterparty: item.Counterparty,
		AmountCents:  item.AmountCents,
		Assignment:   rule.Assignment,
		Confidence:   rule.Confidence,
		Source:       model.SourcePattern,
		Status:       r.statusFor(rule.Confidence),
		Rationale:    rationale,
	}
}

// decisionFromInference calls the inference subsystem under the hard
// timeout, applies a matching rule's boost when the two agree, and
// validates split constraints. A non-empty failure string means the
// item failed.
func (r *Router) decisionFromInference(ctx context.Context, tenantID string, item model.TransactionInput, rule *model.Rule) (*model.Decision, string) {
	inferCtx, cancel := context.WithTimeout(ctx, r.cfg.InferenceTimeout)
	defer cancel()

	result, err := r.inference.Infer(inferCtx, inference.Request{
		TenantID:     tenantID,
		Counterparty: item.Counterparty,
		Description:  item.Description,
		AmountCents:  item.AmountCents,
		Date:         item.Date,
	})
	if err != nil {
		if errors.Is(err, inference.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, "inference timed out"
		}
		return nil, fmt.Sprintf("inference failed: %v", err)
	}

	if err := model.ValidateSplits(result.Splits, item.AmountCents); err != nil {
		return nil, fmt.Sprintf("split validation failed: %v", err)
	}

	confidence := result.Confidence
	source := model.SourceInference
	if rule != nil && rule.Assignment.Equal(result.Assignment) {
		confidence += rule.Boost
		if confidence > 100 {
			confidence = 100
		}
		source = model.SourceHybrid
	}

	return &model.Decision{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		ExternalID:   item.ExternalID,
		Fingerprint:  item.Fingerprint(),
		Counterparty: item.Counterparty,
		AmountCents:  item.AmountCents,
		Assignment:   result.Assignment,
		Splits:       result.Splits,
		Confidence:   confidence,
		Source:       source,
		Status:       r.statusFor(confidence),
		Rationale:    result.Rationale,
	}, ""
}

func (r *Router) statusFor(confidence float64) model.RoutingStatus {
	if confidence >= r.cfg.Threshold {
		return model.StatusAutoApplied
	}
	return model.StatusReviewRequired
}

func failedResult(item model.TransactionInput, reason string) ItemResult {
	return ItemResult{
		ExternalID: item.ExternalID,
		Status:     model.StatusFailed,
		Error:      reason,
	}
}

func resultFromDecision(decision *model.Decision) ItemResult {
	return ItemResult{
		ExternalID: decision.ExternalID,
		DecisionID: decision.ID,
		Status:     decision.Status,
		Source:     decision.Source,
		Assignment: decision.Assignment,
		Rationale:  decision.Rationale,
		Confidence: decision.Confidence,
	}
}

func computeStats(results []ItemResult) BatchStats {
	stats := BatchStats{Total: len(results)}

	var confidenceSum float64
	var ruleResolved, inferenceOnly int
	for _, result := range results {
		switch result.Status {
		case model.StatusAutoApplied:
			stats.AutoApplied++
		case model.StatusReviewRequired:
			stats.ReviewRequired++
		case model.StatusFailed:
			stats.Failed++
			continue
		}

		confidenceSum += result.Confidence
		switch result.Source {
		case model.SourcePattern, model.SourceHybrid:
			ruleResolved++
		case model.SourceInference:
			inferenceOnly++
		}
	}

	persisted := stats.Total - stats.Failed
	if persisted > 0 {
		stats.AvgConfidence = confidenceSum / float64(persisted)
		stats.RuleResolved = float64(ruleResolved) / float64(persisted)
		stats.InferenceOnly = float64(inferenceOnly) / float64(persisted)
	}

	return stats
}
