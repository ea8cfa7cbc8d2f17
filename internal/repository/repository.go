// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-credit/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const borrowerColumns = `id, full_name, email, mobile_no, business_name, dba_name,
	business_state, zip_code, years_in_business, business_start_date,
	annual_revenue, avg_daily_balance, nsf_count, dscr_ratio, guarantor_fico,
	paynet_score, entity_type, industry_tier, industry_naics,
	ownership_percentage, is_homeowner, has_active_bankruptcy,
	years_since_bankruptcy_discharge, has_unpaid_tax_liens,
	years_since_last_judgment, loan_amount, ltv_ratio, equipment_type,
	equipment_age, equipment_condition, vendor_type, equipment_location_state,
	created_at`

// UpsertBorrower stores a borrower profile. A re-application with an email
// already on file replaces the whole record, keeping the original id.
func (r *SQLRepository) UpsertBorrower(ctx context.Context, b *domain.Borrower) (int64, error) {
	if b.Email == "" {
		return 0, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	var existingID int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT id FROM borrowers WHERE email = ?`), b.Email,
	).Scan(&existingID)

	if errors.Is(err, sql.ErrNoRows) {
		return r.insertBorrower(ctx, b)
	}
	if err != nil {
		return 0, err
	}

	b.ID = existingID
	return existingID, r.updateBorrower(ctx, b)
}

func (r *SQLRepository) insertBorrower(ctx context.Context, b *domain.Borrower) (int64, error) {
	query := `
		INSERT INTO borrowers (
			full_name, email, mobile_no, business_name, dba_name,
			business_state, zip_code, years_in_business, business_start_date,
			annual_revenue, avg_daily_balance, nsf_count, dscr_ratio,
			guarantor_fico, paynet_score, entity_type, industry_tier,
			industry_naics, ownership_percentage, is_homeowner,
			has_active_bankruptcy, years_since_bankruptcy_discharge,
			has_unpaid_tax_liens, years_since_last_judgment, loan_amount,
			ltv_ratio, equipment_type, equipment_age, equipment_condition,
			vendor_type, equipment_location_state, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := borrowerArgs(b)

	if r.driver == "postgres" {
		var id int64
		err := r.db.QueryRowContext(ctx, r.rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, err
		}
		b.ID = id
		return id, nil
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

func (r *SQLRepository) updateBorrower(ctx context.Context, b *domain.Borrower) error {
	query := `
		UPDATE borrowers SET
			full_name = ?, email = ?, mobile_no = ?, business_name = ?,
			dba_name = ?, business_state = ?, zip_code = ?,
			years_in_business = ?, business_start_date = ?,
			annual_revenue = ?, avg_daily_balance = ?, nsf_count = ?,
			dscr_ratio = ?, guarantor_fico = ?, paynet_score = ?,
			entity_type = ?, industry_tier = ?, industry_naics = ?,
			ownership_percentage = ?, is_homeowner = ?,
			has_active_bankruptcy = ?, years_since_bankruptcy_discharge = ?,
			has_unpaid_tax_liens = ?, years_since_last_judgment = ?,
			loan_amount = ?, ltv_ratio = ?, equipment_type = ?,
			equipment_age = ?, equipment_condition = ?, vendor_type = ?,
			equipment_location_state = ?, created_at = ?
		WHERE id = ?
	`
	args := append(borrowerArgs(b), b.ID)
	_, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	return err
}

// borrowerArgs lists insert/update arguments in schema column order,
// excluding id.
func borrowerArgs(b *domain.Borrower) []any {
	return []any{
		b.FullName, b.Email, b.MobileNo, b.BusinessName, b.DBAName,
		b.BusinessState, b.ZipCode, b.YearsInBusiness, nullableTime(b.BusinessStartDate),
		b.AnnualRevenue, b.AvgDailyBalance, b.NSFCount, b.DSCRRatio,
		b.GuarantorFICO, nullableInt(b.PaynetScore), string(b.EntityType), int(b.IndustryTier),
		b.IndustryNAICS, b.OwnershipPercentage, boolToInt(b.IsHomeowner),
		boolToInt(b.HasActiveBankruptcy), nullableFloat(b.YearsSinceBankruptcyDischarge),
		boolToInt(b.HasUnpaidTaxLiens), nullableFloat(b.YearsSinceLastJudgment),
		b.LoanAmount, b.LTVRatio, string(b.EquipmentType), b.EquipmentAge,
		string(b.EquipmentCondition), string(b.VendorType),
		b.EquipmentLocationState, b.CreatedAt,
	}
}

// GetBorrower retrieves a borrower by id.
func (r *SQLRepository) GetBorrower(ctx context.Context, id int64) (*domain.Borrower, error) {
	query := `SELECT ` + borrowerColumns + ` FROM borrowers WHERE id = ?`
	b, err := scanBorrower(r.db.QueryRowContext(ctx, r.rebind(query), id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// IterateBorrowers streams borrowers matching the filter through fn without
// loading the whole population into memory.
func (r *SQLRepository) IterateBorrowers(ctx context.Context, f domain.BorrowerFilter, fn func(*domain.Borrower) error) error {
	query := `SELECT ` + borrowerColumns + ` FROM borrowers`

	var conds []string
	var args []any
	if f.MinFICO > 0 {
		conds = append(conds, "guarantor_fico >= ?")
		args = append(args, f.MinFICO)
	}
	if f.PositiveLoanAmount {
		conds = append(conds, "loan_amount > 0")
	}
	for _, state := range f.ExcludeStates {
		conds = append(conds, "business_state != ?")
		args = append(args, state)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBorrower(rows.Scan)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanBorrower(scan func(dest ...any) error) (*domain.Borrower, error) {
	var b domain.Borrower
	var startDate sql.NullTime
	var paynet sql.NullInt64
	var sinceBankruptcy, sinceJudgment sql.NullFloat64
	var entityType, equipType, equipCond, vendorType string
	var tier int
	var isHomeowner, hasBankruptcy, hasLiens int

	err := scan(
		&b.ID, &b.FullName, &b.Email, &b.MobileNo, &b.BusinessName, &b.DBAName,
		&b.BusinessState, &b.ZipCode, &b.YearsInBusiness, &startDate,
		&b.AnnualRevenue, &b.AvgDailyBalance, &b.NSFCount, &b.DSCRRatio,
		&b.GuarantorFICO, &paynet, &entityType, &tier, &b.IndustryNAICS,
		&b.OwnershipPercentage, &isHomeowner, &hasBankruptcy,
		&sinceBankruptcy, &hasLiens, &sinceJudgment,
		&b.LoanAmount, &b.LTVRatio, &equipType, &b.EquipmentAge,
		&equipCond, &vendorType, &b.EquipmentLocationState, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		t := startDate.Time
		b.BusinessStartDate = &t
	}
	if paynet.Valid {
		p := int(paynet.Int64)
		b.PaynetScore = &p
	}
	if sinceBankruptcy.Valid {
		v := sinceBankruptcy.Float64
		b.YearsSinceBankruptcyDischarge = &v
	}
	if sinceJudgment.Valid {
		v := sinceJudgment.Float64
		b.YearsSinceLastJudgment = &v
	}
	b.EntityType = domain.EntityType(entityType)
	b.IndustryTier = domain.IndustryTier(tier)
	b.EquipmentType = domain.EquipmentType(equipType)
	b.EquipmentCondition = domain.EquipmentCondition(equipCond)
	b.VendorType = domain.VendorType(vendorType)
	b.IsHomeowner = isHomeowner != 0
	b.HasActiveBankruptcy = hasBankruptcy != 0
	b.HasUnpaidTaxLiens = hasLiens != 0

	return &b, nil
}

// CreateLender stores a lender account.
func (r *SQLRepository) CreateLender(ctx context.Context, l *domain.Lender) error {
	if l.ID == "" || l.Email == "" {
		return fmt.Errorf("%w: lender id and email are required", ErrInvalidInput)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO lenders (id, name, email, verified, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		l.ID, l.Name, l.Email, boolToInt(l.Verified), l.CreatedAt)
	return err
}

// GetLender retrieves a lender by id.
func (r *SQLRepository) GetLender(ctx context.Context, id string) (*domain.Lender, error) {
	query := `SELECT id, name, email, verified, created_at FROM lenders WHERE id = ?`
	return r.scanLender(r.db.QueryRowContext(ctx, r.rebind(query), id))
}

// GetLenderByEmail retrieves a lender by email.
func (r *SQLRepository) GetLenderByEmail(ctx context.Context, email string) (*domain.Lender, error) {
	query := `SELECT id, name, email, verified, created_at FROM lenders WHERE email = ?`
	return r.scanLender(r.db.QueryRowContext(ctx, r.rebind(query), email))
}

func (r *SQLRepository) scanLender(row *sql.Row) (*domain.Lender, error) {
	var l domain.Lender
	var verified int
	err := row.Scan(&l.ID, &l.Name, &l.Email, &verified, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Verified = verified != 0
	return &l, nil
}

// CreatePolicyVersion inserts a new policy version and deactivates every
// prior version for the lender in the same transaction, so at most one
// version per lender is ever active.
func (r *SQLRepository) CreatePolicyVersion(ctx context.Context, p *domain.LenderPolicy) error {
	if p.ID == "" || p.LenderID == "" {
		return fmt.Errorf("%w: policy id and lender id are required", ErrInvalidInput)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	excluded, _ := json.Marshal(p.ExcludedIndustries)
	restricted, _ := json.Marshal(p.RestrictedStates)
	programs, _ := json.Marshal(p.Programs)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		r.rebind(`UPDATE lender_policies SET is_active = 0 WHERE lender_id = ? AND is_active = 1`),
		p.LenderID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO lender_policies (
			id, lender_id, version_name, is_active,
			excluded_industries, restricted_states, programs, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.LenderID, p.VersionName, boolToInt(p.Active),
		string(excluded), string(restricted), string(programs), p.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const policyColumns = `id, lender_id, version_name, is_active,
	excluded_industries, restricted_states, programs, updated_at`

// GetPolicy retrieves a policy version by id.
func (r *SQLRepository) GetPolicy(ctx context.Context, id string) (*domain.LenderPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM lender_policies WHERE id = ?`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetActivePolicy retrieves the lender's currently active policy version.
func (r *SQLRepository) GetActivePolicy(ctx context.Context, lenderID string) (*domain.LenderPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM lender_policies
		WHERE lender_id = ? AND is_active = 1
		ORDER BY updated_at DESC LIMIT 1`
	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), lenderID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListActivePolicies returns every active policy across all lenders.
func (r *SQLRepository) ListActivePolicies(ctx context.Context) ([]*domain.LenderPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM lender_policies WHERE is_active = 1 ORDER BY lender_id`
	return r.queryPolicies(ctx, query)
}

// ListPolicyVersions returns the lender's full version history, newest first.
func (r *SQLRepository) ListPolicyVersions(ctx context.Context, lenderID string) ([]*domain.LenderPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM lender_policies WHERE lender_id = ? ORDER BY updated_at DESC`
	return r.queryPolicies(ctx, query, lenderID)
}

func (r *SQLRepository) queryPolicies(ctx context.Context, query string, args ...any) ([]*domain.LenderPolicy, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.LenderPolicy
	for rows.Next() {
		p, err := scanPolicy(rows.Scan)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(scan func(dest ...any) error) (*domain.LenderPolicy, error) {
	var p domain.LenderPolicy
	var active int
	var excluded, restricted, programs string

	err := scan(&p.ID, &p.LenderID, &p.VersionName, &active,
		&excluded, &restricted, &programs, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Active = active != 0
	if err := json.Unmarshal([]byte(excluded), &p.ExcludedIndustries); err != nil {
		return nil, fmt.Errorf("corrupt excluded_industries: %w", err)
	}
	if err := json.Unmarshal([]byte(restricted), &p.RestrictedStates); err != nil {
		return nil, fmt.Errorf("corrupt restricted_states: %w", err)
	}
	if err := json.Unmarshal([]byte(programs), &p.Programs); err != nil {
		return nil, fmt.Errorf("corrupt programs: %w", err)
	}
	return &p, nil
}

// ReplaceBorrowerMatches atomically swaps the borrower's whole match set:
// delete then bulk insert in one transaction, so readers never observe a
// partial mix of stale and fresh matches.
func (r *SQLRepository) ReplaceBorrowerMatches(ctx context.Context, borrowerID int64, matches []*domain.LoanMatch) error {
	return r.replaceMatches(ctx, "borrower_id", borrowerID, matches)
}

// ReplaceLenderMatches atomically swaps the lender's whole match set.
func (r *SQLRepository) ReplaceLenderMatches(ctx context.Context, lenderID string, matches []*domain.LoanMatch) error {
	return r.replaceMatches(ctx, "lender_id", lenderID, matches)
}

func (r *SQLRepository) replaceMatches(ctx context.Context, keyColumn string, key any, matches []*domain.LoanMatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		r.rebind(`DELETE FROM loan_matches WHERE `+keyColumn+` = ?`), key)
	if err != nil {
		return err
	}

	insert := r.rebind(`
		INSERT INTO loan_matches (
			lender_id, borrower_id, score, tier, program_name, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, m := range matches {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, insert,
			m.LenderID, m.BorrowerID, m.Score, string(m.Tier),
			m.ProgramName, boolToInt(m.Active), createdAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListMatchesForBorrower returns the borrower's matches, best score first.
func (r *SQLRepository) ListMatchesForBorrower(ctx context.Context, borrowerID int64) ([]*domain.LoanMatch, error) {
	return r.queryMatches(ctx, "borrower_id", borrowerID)
}

// ListMatchesForLender returns the lender's matches, best score first.
func (r *SQLRepository) ListMatchesForLender(ctx context.Context, lenderID string) ([]*domain.LoanMatch, error) {
	return r.queryMatches(ctx, "lender_id", lenderID)
}

func (r *SQLRepository) queryMatches(ctx context.Context, keyColumn string, key any) ([]*domain.LoanMatch, error) {
	query := `
		SELECT id, lender_id, borrower_id, score, tier, program_name, is_active, created_at
		FROM loan_matches
		WHERE ` + keyColumn + ` = ?
		ORDER BY score DESC
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*domain.LoanMatch
	for rows.Next() {
		var m domain.LoanMatch
		var tier string
		var active int
		if err := rows.Scan(&m.ID, &m.LenderID, &m.BorrowerID, &m.Score,
			&tier, &m.ProgramName, &active, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Tier = domain.MatchTier(tier)
		m.Active = active != 0
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
