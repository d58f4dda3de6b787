package model

import (
	"context"
	"time"
)

// AuditAction names a session lifecycle event.
type AuditAction string

const (
	AuditLoginSucceeded  AuditAction = "login.succeeded"
	AuditLoginFailed     AuditAction = "login.failed"
	AuditLogout          AuditAction = "logout"
	AuditRefreshed       AuditAction = "refresh.succeeded"
	AuditRefreshRejected AuditAction = "refresh.rejected"
)

// AuditEvent is emitted for every session lifecycle outcome.
type AuditEvent struct {
	Action     AuditAction `json:"action"`
	UserID     int64       `json:"user_id,omitempty"`
	Username   string      `json:"username,omitempty"`
	TokenID    string      `json:"jti,omitempty"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// AuditPublisher delivers audit events. Delivery is best-effort.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
}

// NopAuditPublisher drops every event.
type NopAuditPublisher struct{}

// Publish implements AuditPublisher.
func (NopAuditPublisher) Publish(context.Context, AuditEvent) error { return nil }
