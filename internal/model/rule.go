package model

import "time"

// Rule is a learned, deterministic signature-to-assignment shortcut.
// Rules are tenant-scoped and unique per (tenant, signature); they are
// created by the pattern learner and consulted read-only by the router.
// Deletion is an external admin action, never performed by this core.
type Rule struct {
	CreatedAt    time.Time      `json:"created_at"`
	TenantID     string         `json:"tenant_id"`
	Signature    string         `json:"signature"`
	Assignment   CodeAssignment `json:"assignment"`
	ID           int64          `json:"id"`
	Boost        float64        `json:"boost"`
	Confidence   float64        `json:"confidence"`
	SupportCount int            `json:"support_count"`
}
