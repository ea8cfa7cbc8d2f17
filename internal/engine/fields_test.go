package engine

import (
	"testing"

	"github.com/opensource-credit/kestrel/internal/domain"
)

func TestFieldValuePresence(t *testing.T) {
	score := 640
	years := 3.5
	b := &domain.Borrower{
		GuarantorFICO:                 720,
		PaynetScore:                   &score,
		YearsSinceBankruptcyDischarge: &years,
		BusinessState:                 "TX",
		EntityType:                    domain.EntityLLC,
		IndustryTier:                  domain.IndustryTier2,
		NSFCount:                      1,
	}

	tests := []struct {
		field   string
		want    any
		present bool
	}{
		{domain.FieldGuarantorFICO, 720, true},
		{domain.FieldPaynetScore, 640, true},
		{domain.FieldYearsSinceBankruptcy, 3.5, true},
		{domain.FieldBusinessState, "TX", true},
		{domain.FieldEntityType, "LLC", true},
		{domain.FieldIndustryTier, 2, true},
		{domain.FieldNSFCount, 1, true},
		{domain.FieldHasActiveBankruptcy, false, true},
		{domain.FieldYearsSinceJudgment, nil, false},
		{domain.FieldEquipmentType, nil, false},
		{domain.FieldEquipmentCondition, nil, false},
		{"ownership_percentage", nil, false}, // outside the criterion enumeration
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := FieldValue(b, tt.field)
			if ok != tt.present {
				t.Fatalf("presence = %v, want %v", ok, tt.present)
			}
			if tt.present && got != tt.want {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFieldValueBoolAlwaysPresent(t *testing.T) {
	// False booleans are real values, not absences: a strict rule on
	// has_active_bankruptcy must see false, not reject as unknown.
	b := &domain.Borrower{}
	got, ok := FieldValue(b, domain.FieldHasActiveBankruptcy)
	if !ok || got != false {
		t.Errorf("got %#v, %v; want false, true", got, ok)
	}
}
