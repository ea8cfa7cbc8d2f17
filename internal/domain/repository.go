package domain

import (
	"context"
	"time"
)

// BorrowerFilter bounds a candidate scan for the lender-initiated recompute
// direction. The zero value matches every borrower.
type BorrowerFilter struct {
	// MinFICO, when > 0, restricts to borrowers with at least this score.
	MinFICO int

	// ExcludeStates skips borrowers whose business state is listed.
	ExcludeStates []string

	// PositiveLoanAmount restricts to borrowers requesting a positive amount.
	PositiveLoanAmount bool
}

// Repository defines the persistence interface for borrowers, lenders,
// policies, and matches.
type Repository interface {
	// Borrower operations. Upsert replaces the full record when the email
	// already exists (re-application semantics) and returns the borrower id.
	UpsertBorrower(ctx context.Context, b *Borrower) (int64, error)
	GetBorrower(ctx context.Context, id int64) (*Borrower, error)

	// IterateBorrowers streams borrowers matching the filter through fn,
	// one at a time, without materializing the population. Iteration stops
	// on the first error returned by fn.
	IterateBorrowers(ctx context.Context, f BorrowerFilter, fn func(*Borrower) error) error

	// Lender operations
	CreateLender(ctx context.Context, l *Lender) error
	GetLender(ctx context.Context, id string) (*Lender, error)
	GetLenderByEmail(ctx context.Context, email string) (*Lender, error)

	// Policy operations. CreatePolicyVersion inserts the new version and
	// deactivates all prior versions for the lender in one transaction.
	CreatePolicyVersion(ctx context.Context, p *LenderPolicy) error
	GetPolicy(ctx context.Context, id string) (*LenderPolicy, error)
	GetActivePolicy(ctx context.Context, lenderID string) (*LenderPolicy, error)
	ListActivePolicies(ctx context.Context) ([]*LenderPolicy, error)
	ListPolicyVersions(ctx context.Context, lenderID string) ([]*LenderPolicy, error)

	// Match operations: delete-then-insert in a single transaction so a
	// recompute never leaves a mix of stale and fresh matches visible.
	ReplaceBorrowerMatches(ctx context.Context, borrowerID int64, matches []*LoanMatch) error
	ReplaceLenderMatches(ctx context.Context, lenderID string, matches []*LoanMatch) error
	ListMatchesForBorrower(ctx context.Context, borrowerID int64) ([]*LoanMatch, error)
	ListMatchesForLender(ctx context.Context, lenderID string) ([]*LoanMatch, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
