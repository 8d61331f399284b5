// Package models defines the core data structures for QuoteHub.
//
// It includes the insurance category enum, user form data, the normalized
// quote record, and API response types shared across modules.
package models

import (
	"errors"
	"strings"
)

// Category identifies one insurance product line.
type Category string

const (
	// CategoryMedigap covers Medicare Supplement plans, sub-divided by plan letter.
	CategoryMedigap Category = "medigap"
	// CategoryAdvantage covers Medicare Advantage plans.
	CategoryAdvantage Category = "advantage"
	// CategoryDrugPlan covers standalone Part D drug plans.
	CategoryDrugPlan Category = "drug-plan"
	// CategoryDental covers dental insurance plans.
	CategoryDental Category = "dental"
	// CategoryCancer covers cancer insurance plans.
	CategoryCancer Category = "cancer"
	// CategoryHospitalIndemnity covers hospital indemnity plans.
	CategoryHospitalIndemnity Category = "hospital-indemnity"
	// CategoryFinalExpense covers final expense life insurance plans.
	CategoryFinalExpense Category = "final-expense"
)

// AllCategories lists every supported category in display order.
var AllCategories = []Category{
	CategoryMedigap,
	CategoryAdvantage,
	CategoryDrugPlan,
	CategoryDental,
	CategoryCancer,
	CategoryHospitalIndemnity,
	CategoryFinalExpense,
}

// IsValidCategory checks if the given category is supported.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryMedigap, CategoryAdvantage, CategoryDrugPlan, CategoryDental,
		CategoryCancer, CategoryHospitalIndemnity, CategoryFinalExpense:
		return true
	default:
		return false
	}
}

// Gender identifies the applicant's gender as entered on the form.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Validation constants for medigap plan letters.
const (
	// MaxPlanLetterLength defines the maximum length of a medigap plan letter token.
	MaxPlanLetterLength = 2
)

// Error variables for better error handling and testability
var (
	ErrInvalidCategory   = errors.New("invalid insurance category")
	ErrEmptySessionID    = errors.New("session id cannot be empty")
	ErrInvalidPlanLetter = errors.New("invalid medigap plan letter")
	ErrNoCategories      = errors.New("at least one category must be selected")
)

// QuoteFormData holds the user-entered demographic and eligibility inputs.
// Field values are kept as entered; numeric coercion happens in validation.
// A nil TobaccoUse means the question has not been answered yet.
type QuoteFormData struct {
	Age        string `json:"age"`
	ZipCode    string `json:"zipCode"`
	Gender     Gender `json:"gender"`
	TobaccoUse *bool  `json:"tobaccoUse"`

	// Category-specific optional fields.
	FamilyType       string `json:"familyType,omitempty"`
	CarcinomaInSitu  string `json:"carcinomaInSitu,omitempty"`
	PremiumMode      string `json:"premiumMode,omitempty"`
	CoveredMembers   string `json:"coveredMembers,omitempty"`
	DesiredFaceValue string `json:"desiredFaceValue,omitempty"`
	DesiredRate      string `json:"desiredRate,omitempty"`
	UnderwritingType string `json:"underwritingType,omitempty"`
	BenefitAmount    string `json:"benefitAmount,omitempty"`
	State            string `json:"state,omitempty"`
}

// FieldIsSet reports whether the named form field carries a usable value.
// Empty string and unanswered tobacco both count as unset.
func (f *QuoteFormData) FieldIsSet(name string) bool {
	switch name {
	case "age":
		return f.Age != ""
	case "zipCode":
		return f.ZipCode != ""
	case "gender":
		return f.Gender != ""
	case "tobaccoUse":
		return f.TobaccoUse != nil
	case "familyType":
		return f.FamilyType != ""
	case "carcinomaInSitu":
		return f.CarcinomaInSitu != ""
	case "premiumMode":
		return f.PremiumMode != ""
	case "coveredMembers":
		return f.CoveredMembers != ""
	case "desiredFaceValue":
		return f.DesiredFaceValue != ""
	case "desiredRate":
		return f.DesiredRate != ""
	case "underwritingType":
		return f.UnderwritingType != ""
	case "benefitAmount":
		return f.BenefitAmount != ""
	case "state":
		return f.State != ""
	default:
		return false
	}
}

// Quote is the normalized record produced at the provider boundary.
// Raw payload shapes (monthly_premium, rate.month, cents vs dollars) never
// cross into the core; normalization happens once, in the provider package.
type Quote struct {
	ID                  string   `json:"id"`
	Category            Category `json:"category"`
	PlanType            string   `json:"plan_type,omitempty"` // medigap plan letter (F, G, N, ...)
	Carrier             string   `json:"carrier,omitempty"`
	MonthlyPremiumCents int64    `json:"monthly_premium_cents"`
	Raw                 []byte   `json:"raw,omitempty"` // original provider payload, kept for the UI layer
}

// ExecutionStep is one row of an execution plan consumed by the orchestrator.
type ExecutionStep struct {
	Category    Category `json:"category"`
	Plans       []string `json:"plans,omitempty"` // medigap plan letters, nil otherwise
	DisplayName string   `json:"display_name"`
}

// NormalizePlanLetter canonicalizes a medigap plan letter token.
func NormalizePlanLetter(letter string) (string, error) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if l == "" || len(l) > MaxPlanLetterLength {
		return "", ErrInvalidPlanLetter
	}
	return l, nil
}
