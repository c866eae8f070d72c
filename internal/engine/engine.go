// Package engine wires the routing, learning, memory and feedback
// subsystems behind one façade that the CLI (and any other caller)
// drives.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/feedback"
	"github.com/quillbooks/autocode/internal/learner"
	"github.com/quillbooks/autocode/internal/memory"
	"github.com/quillbooks/autocode/internal/model"
	"github.com/quillbooks/autocode/internal/router"
	"github.com/quillbooks/autocode/internal/service"
)

// Engine coordinates the decision pipeline. The memory store and
// feedback loop are optional: the pipeline degrades gracefully to
// routing plus audit when either is absent.
type Engine struct {
	store   service.Storage
	router  *router.Router
	learner *learner.Learner
	memory  *memory.Store
	loop    *feedback.Loop
	logger  *slog.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Memory *memory.Store
	Loop   *feedback.Loop
	Logger *slog.Logger
}

// New assembles an engine.
func New(store service.Storage, r *router.Router, l *learner.Learner, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		router:  r,
		learner: l,
		memory:  opts.Memory,
		loop:    opts.Loop,
		logger:  logger,
	}
}

// RouteDecisions routes a batch and then records each persisted
// decision's rationale in the semantic store. The rationale write is
// best effort and asynchronous: the batch result, whose audit rows are
// already committed, returns without waiting on embedding calls.
func (e *Engine) RouteDecisions(ctx context.Context, tenantID string, items []model.TransactionInput) (*router.BatchResult, error) {
	result, err := e.router.Route(ctx, tenantID, items)
	if err != nil {
		return nil, err
	}

	e.storeRationales(ctx, tenantID, result.Items)

	return result, nil
}

// storeRationales writes routed rationales to the semantic store on a
// background goroutine. A memory failure is logged and dropped.
func (e *Engine) storeRationales(ctx context.Context, tenantID string, items []router.ItemResult) {
	if e.memory == nil {
		return
	}

	// Detach from the request context so returning the batch result
	// does not cancel in-flight embedding calls.
	bg := context.WithoutCancel(ctx)
	go func() {
		for _, item := range items {
			if item.Status == model.StatusFailed || item.Rationale == "" {
				continue
			}
			if err := e.memory.Save(bg, tenantID, item.DecisionID, item.Rationale); err != nil {
				e.logger.Warn("rationale write skipped",
					"tenant", tenantID,
					"decision", item.DecisionID,
					"error", err)
			}
		}
	}()
}

// CorrectionRequest is a human override of one decision.
type CorrectionRequest struct {
	TenantID    string
	DecisionID  string
	Corrected   model.CodeAssignment
	CorrectorID string
	Reason      string
}

// CorrectionResult reports what a correction triggered.
type CorrectionResult struct {
	Outcome        learner.Outcome
	PatternCreated bool
	Conflict       bool
	// Replayed is true when this exact correction was already recorded;
	// nothing new was written or dispatched.
	Replayed bool
}

// RecordCorrection validates and persists a correction, annotates the
// decision, runs the pattern learner, and dispatches the feedback
// signal without waiting for it. Submitting the same correction twice
// returns the stored outcome without re-triggering learning.
func (e *Engine) RecordCorrection(ctx context.Context, req CorrectionRequest) (*CorrectionResult, error) {
	decision, err := e.store.GetDecision(ctx, req.TenantID, req.DecisionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: decision %s", common.ErrNotFound, req.DecisionID)
		}
		return nil, fmt.Errorf("failed to load decision: %w", err)
	}

	if req.Corrected.Equal(decision.Assignment) {
		return nil, fmt.Errorf("%w: decision %s already has that assignment",
			common.ErrCorrectionIdentity, req.DecisionID)
	}

	if existing, err := e.store.GetCorrectionByDecision(ctx, req.TenantID, req.DecisionID); err == nil {
		if existing.Corrected.Equal(req.Corrected) {
			return e.replayedResult(ctx, existing)
		}
		return nil, fmt.Errorf("%w: decision %s was already corrected to %s",
			common.ErrCorrectionExists, req.DecisionID, existing.Corrected.String())
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for prior correction: %w", err)
	}

	correction := &model.Correction{
		TenantID:    req.TenantID,
		DecisionID:  req.DecisionID,
		Signature:   model.NormalizeSignature(decision.Counterparty),
		CorrectorID: req.CorrectorID,
		Reason:      req.Reason,
		Original:    decision.Assignment,
		Corrected:   req.Corrected,
	}

	if err := e.store.SaveCorrection(ctx, correction); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			// A concurrent submission won; classify against what it wrote.
			if stored, lookupErr := e.store.GetCorrectionByDecision(ctx, req.TenantID, req.DecisionID); lookupErr == nil {
				if stored.Corrected.Equal(req.Corrected) {
					return e.replayedResult(ctx, stored)
				}
				return nil, fmt.Errorf("%w: decision %s was already corrected to %s",
					common.ErrCorrectionExists, req.DecisionID, stored.Corrected.String())
			}
		}
		return nil, fmt.Errorf("failed to save correction: %w", err)
	}

	if err := e.store.MarkDecisionCorrected(ctx, req.TenantID, req.DecisionID, req.Corrected); err != nil {
		return nil, fmt.Errorf("failed to annotate decision: %w", err)
	}

	outcome, err := e.learner.Process(ctx, correction)
	if err != nil {
		// The correction is durable; learning can be retried later.
		e.logger.Warn("pattern learning failed",
			"tenant", req.TenantID,
			"decision", req.DecisionID,
			"error", err)
		outcome = learner.OutcomeNoAction
	}

	e.dispatchFeedback(ctx, decision, req.Corrected)

	return &CorrectionResult{
		Outcome:        outcome,
		PatternCreated: outcome == learner.OutcomeRuleCreated,
		Conflict:       outcome == learner.OutcomeConflict,
	}, nil
}

// replayedResult reconstructs the outcome of an already-recorded
// correction from current rule state, without writing anything.
func (e *Engine) replayedResult(ctx context.Context, stored *model.Correction) (*CorrectionResult, error) {
	result := &CorrectionResult{Outcome: learner.OutcomeNoAction, Replayed: true}

	if stored.Signature == "" {
		return result, nil
	}
	rule, err := e.store.GetRuleBySignature(ctx, stored.TenantID, stored.Signature)
	if err != nil {
		return result, nil
	}
	if rule.Assignment.Equal(stored.Corrected) {
		result.Outcome = learner.OutcomeAlreadyCovered
	} else {
		result.Outcome = learner.OutcomeConflict
		result.Conflict = true
	}
	return result, nil
}

// dispatchFeedback fires the reward signal and drains the report on a
// background goroutine. The correction path never waits on sinks.
func (e *Engine) dispatchFeedback(ctx context.Context, decision *model.Decision, corrected model.CodeAssignment) {
	if e.loop == nil {
		return
	}

	sig := feedback.Signal{
		TenantID:   decision.TenantID,
		DecisionID: decision.ID,
		Original:   decision.Assignment,
		Corrected:  corrected,
		Confidence: decision.Confidence,
		Source:     decision.Source,
	}

	// Detach from the request context so a finished CLI command does
	// not cancel in-flight sink calls.
	reports := e.loop.Dispatch(context.WithoutCancel(ctx), sig)
	go func() {
		report := <-reports
		if len(report.Failed) > 0 {
			e.logger.Warn("feedback sinks failed",
				"tenant", decision.TenantID,
				"decision", decision.ID,
				"failed", report.Failed)
		}
	}()
}

// GetRationale returns the stored reasoning for a decision, if the
// semantic store holds one.
func (e *Engine) GetRationale(ctx context.Context, tenantID, decisionID string) (string, bool) {
	if e.memory == nil {
		return "", false
	}
	return e.memory.Get(ctx, tenantID, decisionID)
}

// FindSimilarRationale searches the tenant's reasoning partition.
func (e *Engine) FindSimilarRationale(ctx context.Context, tenantID, query string, k int) []memory.Match {
	if e.memory == nil {
		return nil
	}
	return e.memory.FindSimilar(ctx, tenantID, query, k)
}

// ReviewQueue lists decisions awaiting human review.
func (e *Engine) ReviewQueue(ctx context.Context, tenantID string, limit int) ([]model.Decision, error) {
	return e.store.GetDecisionsByStatus(ctx, tenantID, model.StatusReviewRequired, limit)
}
