package stage

import (
	"encoding/json"
	"strings"
)

// noResultsMarker is what the validation prompt sees when the search was
// skipped or came back empty.
const noResultsMarker = "No results found."

const extractionPrompt = `Analyze the image(s) of the business card and extract all key information.
There may be a front and a back image. Look at BOTH images to find all details.
Pay extremely close attention to stylized logos, gradients, shadows, or complex typography. Use context (like slogans or other text) to determine the most likely correct spelling.
Return the data as a clean JSON object with the following keys:
'company', 'name', 'title', 'phone', 'email', 'address', 'slogan', 'location'
If a piece of information is not found, return an empty string for that key.`

func validationPrompt(ocrJSON, resultsJSON string) string {
	var b strings.Builder
	b.WriteString("You are a data validation expert. I have OCR data from a business card and a list of web search results.\n")
	b.WriteString("Your job is to find the single best match from the results and use it to correct the OCR data.\n\n")
	b.WriteString("Here is the data from OCR: ")
	b.WriteString(ocrJSON)
	b.WriteString("\n\nHere is the list of top search results: ")
	b.WriteString(resultsJSON)
	b.WriteString(`

Instructions:
1. Find Best Match: find the one result (e.g., a company website or LinkedIn) that is the most likely match.
2. If a genuine match is found:
   - Set 'is_validated' to true.
   - Correct any misspellings in the OCR 'company' or 'name' using the matched result.
   - Fill in the 'website' field using the result's 'link'.
   - Set 'validation_source' to the result's 'link'.
   - Return all other OCR fields as-is (a later step searches for more).
3. If NO genuine match is found:
   - Set 'is_validated' to false.
   - Set 'website' and 'validation_source' to empty strings and return the original OCR data otherwise unchanged.

Return a single JSON object with all keys from the OCR data, plus 'website', 'validation_source', 'is_validated'.`)
	return b.String()
}

func enrichmentPrompt(validatedJSON, resultsJSON string) string {
	var b strings.Builder
	b.WriteString("You are a data enrichment assistant. I have partially validated data from a business card.\n")
	b.WriteString("A second, targeted search was performed to find missing company details like 'about', 'location', and contact info.\n")
	b.WriteString("Your job is to merge this new information reliably.\n\n")
	b.WriteString("Here is the data so far: ")
	b.WriteString(validatedJSON)
	b.WriteString("\n\nHere is the list of results from the new enrichment search: ")
	b.WriteString(resultsJSON)
	b.WriteString(`

Instructions:
1. Review the 'snippet' and 'title' of ALL search results carefully.
2. Extract key details:
   - 'about_the_company': a concise (1-2 sentence) description of what the company does.
   - 'location': the city, state, or general region mentioned. If an address exists, extract the city/state from it.
   - 'phone', 'email', 'address': the first credible contact details.
3. Merge: return a final JSON object using "the data so far" as the base.
4. Fill ONLY the fields that are currently empty or contain placeholder text.
5. If multiple sources could fill the same empty field, prefer the most official-looking source (the company's own website over a directory listing).
6. Do not overwrite data that already exists unless it is clearly a placeholder. Keep 'validation_source' as it is.

Return a single JSON object including 'about_the_company' and 'location'.`)
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// All inputs are plain structs/slices; this cannot fail in practice.
		return "{}"
	}
	return string(b)
}
