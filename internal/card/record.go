// Package card holds the contact record that flows through the pipeline and
// the deterministic finalization rules applied to it before submission.
package card

import "strings"

// ContactRecord is the finalized output of the pipeline. Every string field is
// always present in the JSON response; missing values are empty strings, never
// null or absent.
type ContactRecord struct {
	Company          string `json:"company"`
	Name             string `json:"name"`
	Title            string `json:"title"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Website          string `json:"website"`
	ValidationSource string `json:"validation_source"`
	IsValidated      bool   `json:"is_validated"`
	AboutTheCompany  string `json:"about_the_company"`
	Location         string `json:"location"`
}

// Extraction is the raw OCR result from the extraction stage. Slogan is
// transient: it feeds the validation search query and is never part of the
// final record.
type Extraction struct {
	Company  string `json:"company"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Slogan   string `json:"slogan"`
	Location string `json:"location"`
}

// Validation is the extraction corrected against web evidence, plus the
// validation verdict.
type Validation struct {
	Extraction

	Website          string `json:"website"`
	ValidationSource string `json:"validation_source"`
	IsValidated      bool   `json:"is_validated"`
}

// Enrichment is the validated record with descriptive fields filled in from
// the second, targeted search.
type Enrichment struct {
	Validation

	AboutTheCompany string `json:"about_the_company"`
	Location        string `json:"location"`
}

// phoneEscape prevents spreadsheet consumers from coercing "+"-prefixed
// numbers into formulas or dates.
const phoneEscape = "'"

// Finalize applies the field merge policy: keys the stages never set default
// to empty strings, a leading "+" on the phone gets an escape prefix, and the
// transient slogan is discarded (Enrichment carries no slogan in its output
// shape, so the drop happens here by construction).
func Finalize(e Enrichment) ContactRecord {
	rec := ContactRecord{
		Company:          strings.TrimSpace(e.Company),
		Name:             strings.TrimSpace(e.Name),
		Title:            strings.TrimSpace(e.Title),
		Phone:            strings.TrimSpace(e.Phone),
		Email:            strings.TrimSpace(e.Email),
		Address:          strings.TrimSpace(e.Address),
		Website:          strings.TrimSpace(e.Website),
		ValidationSource: strings.TrimSpace(e.ValidationSource),
		IsValidated:      e.IsValidated,
		AboutTheCompany:  strings.TrimSpace(e.AboutTheCompany),
		Location:         strings.TrimSpace(e.Location),
	}
	if e.Location == "" {
		// Enrichment may not have run; fall back to the OCR location.
		rec.Location = strings.TrimSpace(e.Extraction.Location)
	}
	if strings.HasPrefix(rec.Phone, "+") {
		rec.Phone = phoneEscape + rec.Phone
	}
	return rec
}

// FromValidation widens a validation result into an enrichment result without
// adding anything, for the paths where the enrichment stage is skipped.
func FromValidation(v Validation) Enrichment {
	return Enrichment{Validation: v, Location: v.Extraction.Location}
}
