package domain

import "time"

// MatchTier is the discrete quality bucket for a match score.
type MatchTier string

const (
	TierPerfect  MatchTier = "perfect"  // score >= 90
	TierStrong   MatchTier = "strong"   // score >= 75
	TierModerate MatchTier = "moderate" // score >= 50
	TierWeak     MatchTier = "weak"     // 20 < score < 50
)

// AcceptanceFloor is the exclusive minimum final score for a program to
// produce a match at all.
const AcceptanceFloor = 20.0

// TierFor maps a final score to its tier. Thresholds are exact cut points:
// 90.00 is perfect, 89.99 is strong.
func TierFor(score float64) MatchTier {
	switch {
	case score >= 90:
		return TierPerfect
	case score >= 75:
		return TierStrong
	case score >= 50:
		return TierModerate
	default:
		return TierWeak
	}
}

// LoanMatch pairs a borrower with a lender's best-scoring eligible program.
// At most one active match exists per (lender, borrower) pair; recomputation
// replaces the entity's whole match set rather than patching it.
type LoanMatch struct {
	ID         int64     `json:"id"`
	LenderID   string    `json:"lenderId"`
	BorrowerID int64     `json:"borrowerId"`

	Score       float64   `json:"score"` // rounded to 2 decimals
	Tier        MatchTier `json:"tier"`
	ProgramName string    `json:"programName"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
