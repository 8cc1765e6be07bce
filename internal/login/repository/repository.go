package repository

import (
	"context"
	"time"
)

// Credential is a subject's stored password hash.
type Credential struct {
	TenantID          string
	SubjectID         string
	PasswordHash      string
	PasswordUpdatedAt time.Time
}

// CredentialRepository defines persistence for password credentials.
type CredentialRepository interface {
	// Get returns the credential, or nil if the subject has none.
	Get(ctx context.Context, tenantID, subjectID string) (*Credential, error)
	// Upsert creates or replaces the credential.
	Upsert(ctx context.Context, c *Credential) error
}
