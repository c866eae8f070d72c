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

// CreateRule inserts a new learned rule. The UNIQUE(tenant_id,
// signature) constraint is the concurrency guard: two correction
// workers racing to create the same rule cannot both succeed, and the
// loser receives common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	query := `
		INSERT INTO rules (
			tenant_id, signature, code, sub_code, tax_treatment,
			boost, confidence, support_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.TenantID, rule.Signature,
		rule.Assignment.Code, rule.Assignment.SubCode, rule.Assignment.TaxTreatment,
		rule.Boost, rule.Confidence, rule.SupportCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule for signature %q: %w", rule.Signature, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	return nil
}

// GetRuleBySignature retrieves a tenant's rule for an exact signature.
func (s *SQLiteStorage) GetRuleBySignature(ctx context.Context, tenantID, signature string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(signature, "signature"); err != nil {
		return nil, err
	}

	var rule model.Rule
	var subCode, taxTreatment sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, signature, code, sub_code, tax_treatment,
			boost, confidence, support_count, created_at
		FROM rules
		WHERE tenant_id = ? AND signature = ?
	`, tenantID, signature).Scan(
		&rule.ID, &rule.TenantID, &rule.Signature,
		&rule.Assignment.Code, &subCode, &taxTreatment,
		&rule.Boost, &rule.Confidence, &rule.SupportCount, &rule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule for signature %q: %w", signature, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	rule.Assignment.SubCode = subCode.String
	rule.Assignment.TaxTreatment = taxTreatment.String
	return &rule, nil
}

// GetRulesForTenant returns all of a tenant's rules, longest signature
// first so more specific rules win substring matching.
func (s *SQLiteStorage) GetRulesForTenant(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, signature, code, sub_code, tax_treatment,
			boost, confidence, support_count, created_at
		FROM rules
		WHERE tenant_id = ?
		ORDER BY LENGTH(signature) DESC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		var subCode, taxTreatment sql.NullString
		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Signature,
			&rule.Assignment.Code, &subCode, &taxTreatment,
			&rule.Boost, &rule.Confidence, &rule.SupportCount, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Assignment.SubCode = subCode.String
		rule.Assignment.TaxTreatment = taxTreatment.String
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}
