package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/model"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedTenant(t *testing.T, store *SQLiteStorage, id string) {
	t.Helper()
	require.NoError(t, store.CreateTenant(context.Background(), &model.Tenant{ID: id, Name: id + " Inc"}))
}

func testDecision(tenantID, id, externalID string) *model.Decision {
	return &model.Decision{
		ID:           id,
		TenantID:     tenantID,
		ExternalID:   externalID,
		Fingerprint:  "fp-" + externalID,
		Counterparty: "ACME SUPPLY",
		AmountCents:  12500,
		Assignment:   model.CodeAssignment{Code: "5200", SubCode: "10"},
		Confidence:   92,
		Source:       model.SourceInference,
		Status:       model.StatusAutoApplied,
		Rationale:    "Recurring office supply purchase from a known vendor.",
	}
}

func TestMigrate(t *testing.T) {
	store := newTestStorage(t)

	// Re-running migrations must be a no-op.
	assert.NoError(t, store.Migrate(context.Background()))
}

func TestTenants(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTenant(ctx, &model.Tenant{ID: "t1", Name: "First"}))
	require.NoError(t, store.CreateTenant(ctx, &model.Tenant{ID: "t2", Name: "Second"}))

	err := store.CreateTenant(ctx, &model.Tenant{ID: "t1", Name: "Duplicate"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	tenant, err := store.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "First", tenant.Name)

	_, err = store.GetTenant(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	tenants, err := store.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}

func TestSaveAndGetDecision(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	decision := testDecision("t1", "d1", "ext-1")
	decision.Splits = []model.SplitLine{
		{Assignment: model.CodeAssignment{Code: "5200"}, AmountCents: 10000},
		{Assignment: model.CodeAssignment{Code: "5400"}, AmountCents: 2500},
	}
	require.NoError(t, store.SaveDecision(ctx, decision))

	got, err := store.GetDecision(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, decision.Assignment, got.Assignment)
	assert.Equal(t, decision.Rationale, got.Rationale)
	assert.Len(t, got.Splits, 2)
	assert.Nil(t, got.WasCorrect)
	assert.Nil(t, got.CorrectedTo)

	// Same external transaction ID within the tenant is rejected.
	dup := testDecision("t1", "d2", "ext-1")
	assert.ErrorIs(t, store.SaveDecision(ctx, dup), common.ErrDuplicateEntry)

	// Lookup scoped to the wrong tenant must not find it.
	seedTenant(t, store, "t2")
	_, err = store.GetDecision(ctx, "t2", "d1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveDecision_RejectsInvalid(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	failed := testDecision("t1", "d1", "ext-1")
	failed.Status = model.StatusFailed
	assert.ErrorIs(t, store.SaveDecision(ctx, failed), ErrInvalidDecision)

	outOfRange := testDecision("t1", "d2", "ext-2")
	outOfRange.Confidence = 120
	assert.ErrorIs(t, store.SaveDecision(ctx, outOfRange), ErrInvalidDecision)

	badSource := testDecision("t1", "d3", "ext-3")
	badSource.Source = "oracle"
	assert.ErrorIs(t, store.SaveDecision(ctx, badSource), ErrInvalidDecision)
}

func TestMarkDecisionCorrected(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	decision := testDecision("t1", "d1", "ext-1")
	require.NoError(t, store.SaveDecision(ctx, decision))

	corrected := model.CodeAssignment{Code: "6100"}
	require.NoError(t, store.MarkDecisionCorrected(ctx, "t1", "d1", corrected))

	got, err := store.GetDecision(ctx, "t1", "d1")
	require.NoError(t, err)
	require.NotNil(t, got.WasCorrect)
	assert.False(t, *got.WasCorrect)
	require.NotNil(t, got.CorrectedTo)
	assert.Equal(t, "6100", got.CorrectedTo.Code)

	// Original audit fields are untouched.
	assert.Equal(t, "5200", got.Assignment.Code)
	assert.Equal(t, decision.Rationale, got.Rationale)

	err = store.MarkDecisionCorrected(ctx, "t1", "missing", corrected)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetDecisionsByStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	auto := testDecision("t1", "d1", "ext-1")
	require.NoError(t, store.SaveDecision(ctx, auto))

	review := testDecision("t1", "d2", "ext-2")
	review.Status = model.StatusReviewRequired
	review.Confidence = 55
	require.NoError(t, store.SaveDecision(ctx, review))

	pending, err := store.GetDecisionsByStatus(ctx, "t1", model.StatusReviewRequired, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d2", pending[0].ID)
}

func TestRules(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")
	seedTenant(t, store, "t2")

	rule := &model.Rule{
		TenantID:     "t1",
		Signature:    "ACME SUPPLY",
		Assignment:   model.CodeAssignment{Code: "5200"},
		Boost:        15,
		Confidence:   85,
		SupportCount: 3,
	}
	require.NoError(t, store.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)

	// Same signature within the tenant collides.
	dup := &model.Rule{
		TenantID:   "t1",
		Signature:  "ACME SUPPLY",
		Assignment: model.CodeAssignment{Code: "9999"},
		Boost:      15,
	}
	assert.ErrorIs(t, store.CreateRule(ctx, dup), common.ErrDuplicateEntry)

	// Same signature under another tenant is fine.
	other := &model.Rule{
		TenantID:   "t2",
		Signature:  "ACME SUPPLY",
		Assignment: model.CodeAssignment{Code: "7000"},
		Boost:      15,
	}
	require.NoError(t, store.CreateRule(ctx, other))

	got, err := store.GetRuleBySignature(ctx, "t1", "ACME SUPPLY")
	require.NoError(t, err)
	assert.Equal(t, "5200", got.Assignment.Code)
	assert.Equal(t, 3, got.SupportCount)

	_, err = store.GetRuleBySignature(ctx, "t1", "UNKNOWN CO")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rules, err := store.GetRulesForTenant(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "ACME SUPPLY", rules[0].Signature)
}

func TestCorrections(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	decision := testDecision("t1", "d1", "ext-1")
	require.NoError(t, store.SaveDecision(ctx, decision))

	correction := &model.Correction{
		TenantID:    "t1",
		DecisionID:  "d1",
		Signature:   "ACME SUPPLY",
		Original:    model.CodeAssignment{Code: "5200", SubCode: "10"},
		Corrected:   model.CodeAssignment{Code: "6100"},
		CorrectorID: "reviewer-7",
		Reason:      "Actually a software subscription.",
	}
	require.NoError(t, store.SaveCorrection(ctx, correction))
	assert.NotZero(t, correction.ID)

	// One active correction per decision.
	again := *correction
	again.ID = 0
	assert.ErrorIs(t, store.SaveCorrection(ctx, &again), common.ErrDuplicateEntry)

	got, err := store.GetCorrectionByDecision(ctx, "t1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "reviewer-7", got.CorrectorID)
	assert.Equal(t, "6100", got.Corrected.Code)

	_, err = store.GetCorrectionByDecision(ctx, "t1", "d2")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCountAgreeingCorrections(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedTenant(t, store, "t1")

	target := model.CodeAssignment{Code: "5200"}
	for i, decisionID := range []string{"d1", "d2", "d3"} {
		decision := testDecision("t1", decisionID, "ext-"+decisionID)
		require.NoError(t, store.SaveDecision(ctx, decision))
		require.NoError(t, store.SaveCorrection(ctx, &model.Correction{
			TenantID:    "t1",
			DecisionID:  decisionID,
			Signature:   "ACME SUPPLY",
			Original:    model.CodeAssignment{Code: "9000"},
			Corrected:   target,
			CorrectorID: "reviewer-7",
		}))

		count, err := store.CountAgreeingCorrections(ctx, "t1", "ACME SUPPLY", target)
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}

	// A different corrected code does not count toward the same mapping.
	count, err := store.CountAgreeingCorrections(ctx, "t1", "ACME SUPPLY", model.CodeAssignment{Code: "7700"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Other tenants never contribute.
	count, err = store.CountAgreeingCorrections(ctx, "t2", "ACME SUPPLY", target)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
