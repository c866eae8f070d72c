// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/quillbooks/autocode/internal/model"
)

// Storage defines the contract for our persistence layer. Every
// operation is tenant-scoped; implementations must enforce the
// uniqueness constraints per (tenant, signature) on rules, per
// (tenant, external transaction ID) on decisions, and per
// (tenant, decision ID) on corrections.
type Storage interface {
	// Tenant operations
	CreateTenant(ctx context.Context, tenant *model.Tenant) error
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)

	// Decision operations
	SaveDecision(ctx context.Context, decision *model.Decision) error
	GetDecision(ctx context.Context, tenantID, decisionID string) (*model.Decision, error)
	GetDecisionByExternalID(ctx context.Context, tenantID, externalID string) (*model.Decision, error)
	MarkDecisionCorrected(ctx context.Context, tenantID, decisionID string, correctedTo model.CodeAssignment) error
	GetDecisionsByStatus(ctx context.Context, tenantID string, status model.RoutingStatus, limit int) ([]model.Decision, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRuleBySignature(ctx context.Context, tenantID, signature string) (*model.Rule, error)
	GetRulesForTenant(ctx context.Context, tenantID string) ([]model.Rule, error)

	// Correction operations
	SaveCorrection(ctx context.Context, correction *model.Correction) error
	GetCorrectionByDecision(ctx context.Context, tenantID, decisionID string) (*model.Correction, error)
	CountAgreeingCorrections(ctx context.Context, tenantID, signature string, corrected model.CodeAssignment) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
