// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"time"
)

// EntityType is the legal structure of the borrowing business.
type EntityType string

const (
	EntityLLC         EntityType = "LLC"
	EntityCorp        EntityType = "Corp"
	EntitySoleProp    EntityType = "Sole Prop"
	EntityPartnership EntityType = "Partnership"
)

// IndustryTier buckets industries by underwriting risk (1 = lowest risk).
type IndustryTier int

const (
	IndustryTier1 IndustryTier = 1
	IndustryTier2 IndustryTier = 2
	IndustryTier3 IndustryTier = 3
)

// EquipmentType classifies the financed equipment.
type EquipmentType string

const (
	EquipmentMedical      EquipmentType = "Medical"
	EquipmentTrucking     EquipmentType = "Trucking"
	EquipmentCNC          EquipmentType = "CNC"
	EquipmentConstruction EquipmentType = "Construction"
	EquipmentAgricultural EquipmentType = "Agricultural"
	EquipmentIndustrial   EquipmentType = "Industrial"
)

// EquipmentCondition is new vs. used.
type EquipmentCondition string

const (
	ConditionNew  EquipmentCondition = "new"
	ConditionUsed EquipmentCondition = "used"
)

// VendorType is who is selling the equipment.
type VendorType string

const (
	VendorDealer       VendorType = "Dealer"
	VendorPrivateParty VendorType = "Private Party"
)

// Borrower is a business credit profile plus the requested transaction terms.
// Identity fields are never scored. A re-application with the same email
// replaces the whole record.
type Borrower struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// Identity (not scored)
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	MobileNo string `json:"mobileNo"`

	BusinessName string `json:"businessName"`
	DBAName      string `json:"dbaName,omitempty"`

	BusinessState string `json:"businessState"` // two-letter code
	ZipCode       string `json:"zipCode,omitempty"`

	// Financial metrics
	YearsInBusiness   float64    `json:"yearsInBusiness"`
	BusinessStartDate *time.Time `json:"businessStartDate,omitempty"`
	AnnualRevenue     float64    `json:"annualRevenue"`
	AvgDailyBalance   float64    `json:"avgDailyBalance"`
	NSFCount          int        `json:"nsfCount"`
	DSCRRatio         float64    `json:"dscrRatio"`
	GuarantorFICO     int        `json:"guarantorFico"`
	PaynetScore       *int       `json:"paynetScore,omitempty"`

	// Categorical attributes
	EntityType    EntityType   `json:"businessEntityType"`
	IndustryTier  IndustryTier `json:"industryTier"`
	IndustryNAICS string       `json:"industryNaics,omitempty"`

	OwnershipPercentage float64 `json:"ownershipPercentage"`
	IsHomeowner         bool    `json:"isHomeowner"`

	// Derogatory history (optional fields are nullable: absent != false/0)
	HasActiveBankruptcy           bool     `json:"hasActiveBankruptcy"`
	YearsSinceBankruptcyDischarge *float64 `json:"yearsSinceBankruptcyDischarge,omitempty"`
	HasUnpaidTaxLiens             bool     `json:"hasUnpaidTaxLiens"`
	YearsSinceLastJudgment        *float64 `json:"yearsSinceLastJudgment,omitempty"`

	// Requested transaction terms
	LoanAmount             float64            `json:"loanAmount"`
	LTVRatio               float64            `json:"ltvRatio"`
	EquipmentType          EquipmentType      `json:"equipmentType"`
	EquipmentAge           int                `json:"equipmentAge"`
	EquipmentCondition     EquipmentCondition `json:"equipmentCondition"`
	VendorType             VendorType         `json:"vendorType"`
	EquipmentLocationState string             `json:"equipmentLocationState,omitempty"`
}

// Lender is a lending institution account. Underwriting configuration lives
// in LenderPolicy versions, not here.
type Lender struct {
	ID        string    `json:"id"` // uuid
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}
