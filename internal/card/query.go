package card

import (
	"fmt"
	"strings"
)

// ValidationQuery builds the first search query from OCR output.
//
// Precedence: company+slogan, then name+company, then company alone, then
// slogan alone, then name alone. An empty return means search is skipped.
func ValidationQuery(e Extraction) string {
	company := strings.TrimSpace(e.Company)
	name := strings.TrimSpace(e.Name)
	slogan := strings.TrimSpace(e.Slogan)

	switch {
	case company != "" && slogan != "":
		return company + " " + slogan
	case company != "" && name != "":
		return name + " " + company
	case company != "":
		return company
	case slogan != "":
		return slogan
	case name != "":
		return name
	}
	return ""
}

// EnrichmentQuery builds the second, targeted query for a validated company.
func EnrichmentQuery(company string) string {
	return fmt.Sprintf("%q about description location contact info email phone address", strings.TrimSpace(company))
}
