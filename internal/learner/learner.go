// Package learner converts repeated human corrections into
// deterministic routing rules.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/model"
	"github.com/quillbooks/autocode/internal/service"
)

// Outcome describes what the learner did with one correction.
type Outcome string

// Learner outcomes.
const (
	// OutcomeNoAction means the correction count has not reached the threshold.
	OutcomeNoAction Outcome = "NO_ACTION"
	// OutcomeRuleCreated means a new rule now covers the signature.
	OutcomeRuleCreated Outcome = "RULE_CREATED"
	// OutcomeAlreadyCovered means an identical rule already exists.
	OutcomeAlreadyCovered Outcome = "ALREADY_COVERED"
	// OutcomeConflict means an existing rule maps the signature to a
	// different assignment; it needs human review and is never
	// silently overwritten.
	OutcomeConflict Outcome = "CONFLICT"
)

// Config controls when corrections graduate into rules.
type Config struct {
	// MinCorrections is how many agreeing corrections a signature
	// needs before a rule is created.
	MinCorrections int
	// Boost is the confidence bonus a matching rule grants the router.
	Boost float64
}

// Learner mines the correction history for recurring overrides.
type Learner struct {
	store service.Storage
	cfg   Config
}

// New creates a learner with defaults applied.
func New(store service.Storage, cfg Config) *Learner {
	if cfg.MinCorrections <= 0 {
		cfg.MinCorrections = 3
	}
	if cfg.Boost <= 0 {
		cfg.Boost = 15
	}
	return &Learner{store: store, cfg: cfg}
}

// Process examines one just-persisted correction and creates a rule
// when enough prior corrections agree on the same signature-to-
// assignment mapping. It creates at most one rule per call and never
// mutates existing rules. Duplicate processing is harmless: the count
// comes from the correction table, which holds at most one correction
// per decision, and rule creation is guarded by the (tenant,
// signature) uniqueness constraint.
func (l *Learner) Process(ctx context.Context, correction *model.Correction) (Outcome, error) {
	if correction.Signature == "" {
		return OutcomeNoAction, nil
	}

	count, err := l.store.CountAgreeingCorrections(ctx,
		correction.TenantID, correction.Signature, correction.Corrected)
	if err != nil {
		return OutcomeNoAction, fmt.Errorf("failed to count corrections: %w", err)
	}

	if count < l.cfg.MinCorrections {
		return OutcomeNoAction, nil
	}

	existing, err := l.store.GetRuleBySignature(ctx, correction.TenantID, correction.Signature)
	switch {
	case err == nil:
		if existing.Assignment.Equal(correction.Corrected) {
			return OutcomeAlreadyCovered, nil
		}
		slog.Warn("rule conflict detected",
			"tenant", correction.TenantID,
			"signature", correction.Signature,
			"existing", existing.Assignment.String(),
			"proposed", correction.Corrected.String())
		return OutcomeConflict, nil
	case !errors.Is(err, common.ErrNotFound):
		return OutcomeNoAction, fmt.Errorf("failed to look up rule: %w", err)
	}

	rule := &model.Rule{
		TenantID:     correction.TenantID,
		Signature:    correction.Signature,
		Assignment:   correction.Corrected,
		Boost:        l.cfg.Boost,
		Confidence:   ruleConfidence(count),
		SupportCount: count,
	}

	if err := l.store.CreateRule(ctx, rule); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			// A concurrent worker won the race; defer to its rule.
			return l.resolveRace(ctx, correction)
		}
		return OutcomeNoAction, fmt.Errorf("failed to create rule: %w", err)
	}

	slog.Info("learned new rule",
		"tenant", correction.TenantID,
		"signature", correction.Signature,
		"assignment", correction.Corrected.String(),
		"support", count)

	return OutcomeRuleCreated, nil
}

// resolveRace re-reads the rule that a concurrent writer created for
// the same signature and classifies the outcome.
func (l *Learner) resolveRace(ctx context.Context, correction *model.Correction) (Outcome, error) {
	existing, err := l.store.GetRuleBySignature(ctx, correction.TenantID, correction.Signature)
	if err != nil {
		return OutcomeNoAction, fmt.Errorf("failed to resolve rule race: %w", err)
	}
	if existing.Assignment.Equal(correction.Corrected) {
		return OutcomeAlreadyCovered, nil
	}
	return OutcomeConflict, nil
}

// ruleConfidence derives a rule's standalone confidence from its
// supporting-correction count. Three agreeing corrections start at 85;
// every further correction at rule-creation time adds five points, up
// to 100.
func ruleConfidence(supportCount int) float64 {
	confidence := 70 + 5*float64(supportCount)
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}
