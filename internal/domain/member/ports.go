package member

import "context"

// DirectoryReader looks up members inside one tenant. Lookups that find nothing return
// ErrMemberNotFound.
type DirectoryReader interface {
	FindByIdentifier(ctx context.Context, tenantID string, id Identifier) (Member, error)
	// FindManager matches like FindByIdentifier but only among manager and admin roles.
	FindManager(ctx context.Context, tenantID string, id Identifier) (Member, error)
}

// DirectoryWriter is bound to a single transaction.
type DirectoryWriter interface {
	DirectoryReader
	Get(ctx context.Context, tenantID, id string) (Member, error)
	Insert(ctx context.Context, m Member) error
	// Update sets every change's field to its NewValue.
	Update(ctx context.Context, tenantID, id string, changes []FieldUpdated) error
	Delete(ctx context.Context, tenantID, id string) error
}

type DirectoryStore interface {
	DirectoryReader
	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, w DirectoryWriter) error) error
}

type CredentialHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Matches(hash, plain string) bool
}

type AuditJournal interface {
	// Append stores a new entry and returns it with its ID. A second rollback entry
	// for the same original yields ErrAlreadyRolledBack.
	Append(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	Get(ctx context.Context, id string) (AuditEntry, error)
	FindRollbackOf(ctx context.Context, tenantID, entryID string) (AuditEntry, bool, error)
	// List returns the tenant's entries newest first; limit <= 0 returns all of them.
	List(ctx context.Context, tenantID string, limit int) ([]AuditEntry, error)
}

type MemberQueryRepository interface {
	GetByID(ctx context.Context, tenantID, memberID string) (*Member, error)
}

type ImportJobRepository interface {
	Enqueue(ctx context.Context, req EnqueueImportJob) (string, error)
}
