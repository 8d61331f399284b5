// Package registry provides the static quote category lookup tables.
//
// Everything here is pure and stateless: required input fields per category,
// display names used for progress matching, and the storage keys each
// category's quote bucket is persisted under. Unknown categories fall back
// to the full demographic field set rather than erroring.
package registry

import (
	"fmt"
	"strings"

	"github.com/medicarekit/quotehub/internal/models"
)

// Display names used for progress matching, one per category.
const (
	DisplayAdvantage         = "Medicare Advantage Plans"
	DisplayDrugPlan          = "Drug Plans"
	DisplayDental            = "Dental Plans"
	DisplayCancer            = "Cancer Insurance Plans"
	DisplayHospitalIndemnity = "Hospital Indemnity Plans"
	DisplayFinalExpense      = "Final Expense Life Plans"
	// DisplaySupplement is the collective medigap display name used when more
	// than one plan letter is requested at once.
	DisplaySupplement = "Supplement Plans"
)

// defaultRequiredFields is the fallback for unknown categories: the full
// demographic set, so an unrecognized request never skips validation.
var defaultRequiredFields = []string{"age", "zipCode", "gender", "tobaccoUse"}

var requiredFields = map[models.Category][]string{
	models.CategoryMedigap:           {"age", "zipCode", "gender", "tobaccoUse"},
	models.CategoryAdvantage:         {"zipCode"},
	models.CategoryDrugPlan:          {"zipCode"},
	models.CategoryDental:            {"zipCode"},
	models.CategoryHospitalIndemnity: {"zipCode"},
	models.CategoryFinalExpense:      {"zipCode"},
	models.CategoryCancer:            {"age", "gender", "tobaccoUse"},
}

var additionalFields = map[models.Category][]string{
	models.CategoryCancer:       {"familyType", "carcinomaInSitu", "premiumMode", "state"},
	models.CategoryDental:       {"coveredMembers"},
	models.CategoryFinalExpense: {"desiredFaceValue"},
}

// RequiredFields returns the base required form fields for a category.
// The returned slice is a copy; callers may mutate it freely.
func RequiredFields(category models.Category) []string {
	fields, ok := requiredFields[category]
	if !ok {
		fields = defaultRequiredFields
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// AdditionalFields returns the category-specific extra required fields.
func AdditionalFields(category models.Category) []string {
	fields := additionalFields[category]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// DisplayNames returns the progress display names for a category. For
// medigap with exactly one requested plan letter the name is letter-specific
// ("Plan G"); with zero or multiple letters the collective supplement name is
// used. All other categories have a single fixed name.
func DisplayNames(category models.Category, plans []string) []string {
	if category == models.CategoryMedigap {
		if len(plans) == 1 {
			return []string{PlanDisplayName(plans[0])}
		}
		return []string{DisplaySupplement}
	}
	switch category {
	case models.CategoryAdvantage:
		return []string{DisplayAdvantage}
	case models.CategoryDrugPlan:
		return []string{DisplayDrugPlan}
	case models.CategoryDental:
		return []string{DisplayDental}
	case models.CategoryCancer:
		return []string{DisplayCancer}
	case models.CategoryHospitalIndemnity:
		return []string{DisplayHospitalIndemnity}
	case models.CategoryFinalExpense:
		return []string{DisplayFinalExpense}
	default:
		// Unknown categories echo their id so progress matching still has
		// something to work with.
		return []string{string(category)}
	}
}

// PlanDisplayName returns the display name for a single medigap plan letter.
func PlanDisplayName(letter string) string {
	return fmt.Sprintf("Plan %s", strings.ToUpper(strings.TrimSpace(letter)))
}

// StorageKey returns the bucket key a category's quotes are persisted under.
func StorageKey(category models.Category) string {
	return fmt.Sprintf("%s_quotes", category)
}

// PlanStorageKey returns the bucket key for one medigap plan letter.
func PlanStorageKey(letter string) string {
	return fmt.Sprintf("medigap_plan_%s_quotes", strings.ToLower(strings.TrimSpace(letter)))
}
