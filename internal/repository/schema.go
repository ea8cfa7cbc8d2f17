package repository

import "strings"

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL; the auto-increment key syntax
// differs, so schemas are rendered per driver.

const schemaLenders = `
CREATE TABLE IF NOT EXISTS lenders (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    verified INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
`

const schemaLenderPolicies = `
CREATE TABLE IF NOT EXISTS lender_policies (
    id TEXT PRIMARY KEY,
    lender_id TEXT NOT NULL,
    version_name TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    excluded_industries TEXT NOT NULL,
    restricted_states TEXT NOT NULL,
    programs TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_lender ON lender_policies(lender_id);
CREATE INDEX IF NOT EXISTS idx_policies_active ON lender_policies(lender_id, is_active);
`

const schemaBorrowers = `
CREATE TABLE IF NOT EXISTS borrowers (
    id %AUTOKEY%,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    mobile_no TEXT,
    business_name TEXT,
    dba_name TEXT,
    business_state TEXT,
    zip_code TEXT,
    years_in_business REAL NOT NULL DEFAULT 0,
    business_start_date TIMESTAMP,
    annual_revenue REAL NOT NULL DEFAULT 0,
    avg_daily_balance REAL NOT NULL DEFAULT 0,
    nsf_count INTEGER NOT NULL DEFAULT 0,
    dscr_ratio REAL NOT NULL DEFAULT 0,
    guarantor_fico INTEGER NOT NULL DEFAULT 0,
    paynet_score INTEGER,
    entity_type TEXT,
    industry_tier INTEGER NOT NULL DEFAULT 0,
    industry_naics TEXT,
    ownership_percentage REAL NOT NULL DEFAULT 0,
    is_homeowner INTEGER NOT NULL DEFAULT 0,
    has_active_bankruptcy INTEGER NOT NULL DEFAULT 0,
    years_since_bankruptcy_discharge REAL,
    has_unpaid_tax_liens INTEGER NOT NULL DEFAULT 0,
    years_since_last_judgment REAL,
    loan_amount REAL NOT NULL DEFAULT 0,
    ltv_ratio REAL NOT NULL DEFAULT 0,
    equipment_type TEXT,
    equipment_age INTEGER NOT NULL DEFAULT 0,
    equipment_condition TEXT,
    vendor_type TEXT,
    equipment_location_state TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_borrowers_fico ON borrowers(guarantor_fico);
CREATE INDEX IF NOT EXISTS idx_borrowers_state ON borrowers(business_state);
CREATE INDEX IF NOT EXISTS idx_borrowers_loan ON borrowers(loan_amount);
`

const schemaLoanMatches = `
CREATE TABLE IF NOT EXISTS loan_matches (
    id %AUTOKEY%,
    lender_id TEXT NOT NULL,
    borrower_id INTEGER NOT NULL,
    score REAL NOT NULL,
    tier TEXT NOT NULL,
    program_name TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (lender_id, borrower_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_borrower ON loan_matches(borrower_id);
CREATE INDEX IF NOT EXISTS idx_matches_lender ON loan_matches(lender_id);
`

// AllSchemas returns all schema statements rendered for the given driver.
func AllSchemas(driver string) []string {
	autokey := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		autokey = "BIGSERIAL PRIMARY KEY"
	}

	schemas := []string{
		schemaLenders,
		schemaLenderPolicies,
		schemaBorrowers,
		schemaLoanMatches,
	}
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = strings.ReplaceAll(s, "%AUTOKEY%", autokey)
	}
	return out
}
