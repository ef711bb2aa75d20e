package domain

import (
	"context"
	"time"
)

// AuditCategory tags an audit entry.
type AuditCategory string

const (
	AuditAuth         AuditCategory = "auth"
	AuditBloodRequest AuditCategory = "blood_request"
	AuditInventory    AuditCategory = "inventory"
	AuditUser         AuditCategory = "user"
	AuditSystem       AuditCategory = "system"
)

// AuditEntry is an immutable record of a security-relevant event.
type AuditEntry struct {
	Category  AuditCategory
	Message   string
	ActorID   string // optional
	Metadata  map[string]any
	Timestamp time.Time
}

// AuditLog is write-only from the auth core's perspective.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
}
