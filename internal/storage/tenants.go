package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillbooks/autocode/internal/common"
	"github.com/quillbooks/autocode/internal/model"
)

// CreateTenant registers a new tenant.
func (s *SQLiteStorage) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if tenant == nil {
		return fmt.Errorf("%w: tenant", ErrNilParameter)
	}
	if err := validateString(tenant.ID, "tenant.ID"); err != nil {
		return err
	}
	if err := validateString(tenant.Name, "tenant.Name"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name) VALUES (?, ?)`,
		tenant.ID, tenant.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %s: %w", tenant.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	tenant.CreatedAt = time.Now()
	return nil
}

// GetTenant retrieves a tenant by ID.
func (s *SQLiteStorage) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var tenant model.Tenant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, id).
		Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return &tenant, nil
}

// ListTenants returns all registered tenants.
func (s *SQLiteStorage) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []model.Tenant
	for rows.Next() {
		var tenant model.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// isUniqueViolation reports whether an error is a SQLite uniqueness
// constraint failure. Matching on the message avoids importing the
// driver's error types everywhere.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
