package engine

import (
	"github.com/opensource-credit/kestrel/internal/domain"
)

// FieldValue resolves a criterion field name to the borrower's value for it.
// The second return reports presence: nullable fields are absent when nil,
// categorical fields when empty, and the industry tier when unset. Unknown
// field names resolve to absent. Enum-typed attributes unwrap to their
// primitive representation so the comparator sees plain scalars.
func FieldValue(b *domain.Borrower, field string) (any, bool) {
	switch field {
	case domain.FieldGuarantorFICO:
		return b.GuarantorFICO, true
	case domain.FieldPaynetScore:
		if b.PaynetScore == nil {
			return nil, false
		}
		return *b.PaynetScore, true
	case domain.FieldYearsInBusiness:
		return b.YearsInBusiness, true
	case domain.FieldEntityType:
		return textValue(string(b.EntityType))
	case domain.FieldIsHomeowner:
		return b.IsHomeowner, true
	case domain.FieldBusinessState:
		return textValue(b.BusinessState)
	case domain.FieldAnnualRevenue:
		return b.AnnualRevenue, true
	case domain.FieldAvgDailyBalance:
		return b.AvgDailyBalance, true
	case domain.FieldNSFCount:
		return b.NSFCount, true
	case domain.FieldDSCRRatio:
		return b.DSCRRatio, true
	case domain.FieldIndustryTier:
		if b.IndustryTier == 0 {
			return nil, false
		}
		return int(b.IndustryTier), true
	case domain.FieldHasActiveBankruptcy:
		return b.HasActiveBankruptcy, true
	case domain.FieldYearsSinceBankruptcy:
		if b.YearsSinceBankruptcyDischarge == nil {
			return nil, false
		}
		return *b.YearsSinceBankruptcyDischarge, true
	case domain.FieldHasUnpaidLiens:
		return b.HasUnpaidTaxLiens, true
	case domain.FieldYearsSinceJudgment:
		if b.YearsSinceLastJudgment == nil {
			return nil, false
		}
		return *b.YearsSinceLastJudgment, true
	case domain.FieldLoanAmount:
		return b.LoanAmount, true
	case domain.FieldLTVRatio:
		return b.LTVRatio, true
	case domain.FieldEquipmentType:
		return textValue(string(b.EquipmentType))
	case domain.FieldEquipmentAge:
		return b.EquipmentAge, true
	case domain.FieldEquipmentCondition:
		return textValue(string(b.EquipmentCondition))
	case domain.FieldVendorType:
		return textValue(string(b.VendorType))
	}
	return nil, false
}

func textValue(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}
