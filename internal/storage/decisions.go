package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/model"
)

// SaveDecision persists one decision. This is the audit write: it must
// succeed before the decision is reported to the caller as persisted.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, decision *model.Decision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDecision(decision); err != nil {
		return err
	}

	var splitsJSON sql.NullString
	if len(decision.Splits) > 0 {
		data, err := json.Marshal(decision.Splits)
		if err != nil {
			return fmt.Errorf("failed to serialize splits: %w", err)
		}
		splitsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO decisions (
			id, tenant_id, external_id, fingerprint, counterparty,
			amount_cents, code, sub_code, tax_treatment, splits,
			confidence, source, status, rationale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		decision.ID, decision.TenantID, decision.ExternalID,
		decision.Fingerprint, decision.Counterparty,
		decision.AmountCents, decision.Assignment.Code,
		decision.Assignment.SubCode, decision.Assignment.TaxTreatment,
		splitsJSON, decision.Confidence, string(decision.Source),
		string(decision.Status), decision.Rationale,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("decision for transaction %s: %w", decision.ExternalID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save decision: %w", err)
	}

	decision.CreatedAt = time.Now()
	return nil
}

// GetDecision retrieves a decision by ID within a tenant.
func (s *SQLiteStorage) GetDecision(ctx context.Context, tenantID, decisionID string) (*model.Decision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(decisionID, "decisionID"); err != nil {
		return nil, err
	}

	return s.scanDecision(s.db.QueryRowContext(ctx,
		selectDecisionColumns+` WHERE tenant_id = ? AND id = ?`,
		tenantID, decisionID))
}

// GetDecisionByExternalID retrieves a decision by the external
// transaction ID, used for idempotent replay detection.
func (s *SQLiteStorage) GetDecisionByExternalID(ctx context.Context, tenantID, externalID string) (*model.Decision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	return s.scanDecision(s.db.QueryRowContext(ctx,
		selectDecisionColumns+` WHERE tenant_id = ? AND external_id = ?`,
		tenantID, externalID))
}

// MarkDecisionCorrected annotates a decision after a human override.
// The original assignment, rationale, and score stay untouched;
// corrections never edit the audit record.
func (s *SQLiteStorage) MarkDecisionCorrected(ctx context.Context, tenantID, decisionID string, correctedTo model.CodeAssignment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	if err := validateString(decisionID, "decisionID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions
		SET was_correct = 0,
			corrected_code = ?,
			corrected_sub_code = ?,
			corrected_tax_treatment = ?
		WHERE tenant_id = ? AND id = ?
	`, correctedTo.Code, correctedTo.SubCode, correctedTo.TaxTreatment,
		tenantID, decisionID)
	if err != nil {
		return fmt.Errorf("failed to annotate decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check annotation result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("decision %s: %w", decisionID, common.ErrNotFound)
	}

	return nil
}

// GetDecisionsByStatus lists a tenant's decisions with the given
// status, most recent first.
func (s *SQLiteStorage) GetDecisionsByStatus(ctx context.Context, tenantID string, status model.RoutingStatus, limit int) ([]model.Decision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		selectDecisionColumns+` WHERE tenant_id = ? AND status = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.Decision
	for rows.Next() {
		decision, scanErr := s.scanDecisionRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		decisions = append(decisions, *decision)
	}

	return decisions, rows.Err()
}

const selectDecisionColumns = `
	SELECT id, tenant_id, external_id, fingerprint, counterparty,
		amount_cents, code, sub_code, tax_treatment, splits,
		confidence, source, status, rationale,
		was_correct, corrected_code, corrected_sub_code,
		corrected_tax_treatment, created_at
	FROM decisions`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStorage) scanDecision(row *sql.Row) (*model.Decision, error) {
	decision, err := scanDecisionFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("decision: %w", common.ErrNotFound)
		}
		return nil, err
	}
	return decision, nil
}

func (s *SQLiteStorage) scanDecisionRow(rows *sql.Rows) (*model.Decision, error) {
	return scanDecisionFrom(rows)
}

func scanDecisionFrom(scanner rowScanner) (*model.Decision, error) {
	var decision model.Decision
	var counterparty, subCode, taxTreatment, rationale sql.NullString
	var splitsJSON sql.NullString
	var wasCorrect sql.NullBool
	var correctedCode, correctedSubCode, correctedTax sql.NullString

	err := scanner.Scan(
		&decision.ID, &decision.TenantID, &decision.ExternalID,
		&decision.Fingerprint, &counterparty, &decision.AmountCents,
		&decision.Assignment.Code, &subCode, &taxTreatment,
		&splitsJSON, &decision.Confidence,
		(*string)(&decision.Source), (*string)(&decision.Status),
		&rationale, &wasCorrect,
		&correctedCode, &correctedSubCode, &correctedTax,
		&decision.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan decision: %w", err)
	}

	decision.Counterparty = counterparty.String
	decision.Assignment.SubCode = subCode.String
	decision.Assignment.TaxTreatment = taxTreatment.String
	decision.Rationale = rationale.String

	if splitsJSON.Valid && splitsJSON.String != "" {
		if err := json.Unmarshal([]byte(splitsJSON.String), &decision.Splits); err != nil {
			return nil, fmt.Errorf("failed to decode splits: %w", err)
		}
	}

	if wasCorrect.Valid {
		v := wasCorrect.Bool
		decision.WasCorrect = &v
	}
	if correctedCode.Valid && correctedCode.String != "" {
		decision.CorrectedTo = &model.CodeAssignment{
			Code:         correctedCode.String,
			SubCode:      correctedSubCode.String,
			TaxTreatment: correctedTax.String,
		}
	}

	return &decision, nil
}
