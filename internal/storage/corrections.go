package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/model"
)

// SaveCorrection persists a human override. The UNIQUE(tenant_id,
// decision_id) constraint enforces at most one active correction per
// decision; a duplicate insert returns common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}

	query := `
		INSERT INTO corrections (
			tenant_id, decision_id, signature,
			original_code, original_sub_code, original_tax_treatment,
			corrected_code, corrected_sub_code, corrected_tax_treatment,
			corrector_id, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		correction.TenantID, correction.DecisionID, correction.Signature,
		correction.Original.Code, correction.Original.SubCode, correction.Original.TaxTreatment,
		correction.Corrected.Code, correction.Corrected.SubCode, correction.Corrected.TaxTreatment,
		correction.CorrectorID, correction.Reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("correction for decision %s: %w", correction.DecisionID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save correction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correction ID: %w", err)
	}

	correction.ID = id
	correction.CreatedAt = time.Now()
	return nil
}

// GetCorrectionByDecision retrieves the correction for a decision, if any.
func (s *SQLiteStorage) GetCorrectionByDecision(ctx context.Context, tenantID, decisionID string) (*model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(decisionID, "decisionID"); err != nil {
		return nil, err
	}

	var correction model.Correction
	var origSub, origTax, corrSub, corrTax, reason sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, decision_id, signature,
			original_code, original_sub_code, original_tax_treatment,
			corrected_code, corrected_sub_code, corrected_tax_treatment,
			corrector_id, reason, created_at
		FROM corrections
		WHERE tenant_id = ? AND decision_id = ?
	`, tenantID, decisionID).Scan(
		&correction.ID, &correction.TenantID, &correction.DecisionID, &correction.Signature,
		&correction.Original.Code, &origSub, &origTax,
		&correction.Corrected.Code, &corrSub, &corrTax,
		&correction.CorrectorID, &reason, &correction.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("correction for decision %s: %w", decisionID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get correction: %w", err)
	}

	correction.Original.SubCode = origSub.String
	correction.Original.TaxTreatment = origTax.String
	correction.Corrected.SubCode = corrSub.String
	correction.Corrected.TaxTreatment = corrTax.String
	correction.Reason = reason.String
	return &correction, nil
}

// CountAgreeingCorrections counts a tenant's corrections that share a
// signature and agree on the corrected assignment. The pattern learner
// uses this to decide when repeated overrides justify a new rule.
func (s *SQLiteStorage) CountAgreeingCorrections(ctx context.Context, tenantID, signature string, corrected model.CodeAssignment) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return 0, err
	}
	if err := validateString(signature, "signature"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM corrections
		WHERE tenant_id = ?
			AND signature = ?
			AND corrected_code = ?
			AND IFNULL(corrected_sub_code, '') = ?
			AND IFNULL(corrected_tax_treatment, '') = ?
	`, tenantID, signature, corrected.Code, corrected.SubCode, corrected.TaxTreatment).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}

	return count, nil
}
