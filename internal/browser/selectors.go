package browser

import (
	"fmt"
	"strings"
	"time"
)

// Locator tables for the booking site. These are configuration data: the
// markup is unstable across site versions, so every target carries an
// ordered fallback list.

const (
	pageReadySelector = "body"

	datePickerSelector = `div[aria-label*="Date picker"]`
	dateCellSelector   = `div[aria-label*="Date picker"] button`

	timePickerSelector = `div[aria-label*="Time picker"]`
	timePickerAnyItem  = `div[aria-label*="Time picker"] li, div[aria-label*="Time picker"] button, div[aria-label*="Time picker"] div[role="option"]`
)

// slotItemSelectors are tried in priority order until one yields a non-empty
// set; list items are the known working shape.
var slotItemSelectors = []string{
	`div[aria-label*="Time picker"] li`,
	`div[aria-label*="Time picker"] button`,
	`div[aria-label*="Time picker"] div[role="option"]`,
	`div[aria-label*="Time picker"] div[role="listitem"]`,
	`div[aria-label*="Time picker"] .time-slot`,
	`div[aria-label*="Time picker"] [data-time]`,
}

// slotTextPatterns re-locate a slot by its display text after navigation may
// have invalidated the original handle. The matched node is often a span
// inside a label; the click targets the enclosing label.
var slotTextPatterns = []string{
	`//div[contains(@aria-label, 'Time picker')]//ul//li//label//span[text()=%s]`,
	`//div[contains(@aria-label, 'Time picker')]//ul//li[.//label//span[text()=%s]]`,
	`//div[contains(@aria-label, 'Time picker')]//ul//li//label//span[contains(text(), %s)]`,
	`//div[contains(@aria-label, 'Time picker')]//ul//li[.//span[text()=%s]]`,
	`//div[contains(@aria-label, 'Time picker')]//ul//li[.//*[text()=%s]]`,
}

// selectedSlotColors is the palette the site applies to a selected slot.
var selectedSlotColors = []string{
	"rgb(0, 130, 115)",
	"rgba(0, 130, 115, 1)",
	"#008273",
	"rgb(0,130,115)",
	"rgba(0,130,115,1)",
}

var selectionClassKeywords = []string{"selected", "active", "current", "chosen", "picked"}

func resourceLocators(name string, timeout time.Duration) []Candidate {
	literal := xpathLiteral(name)

	patterns := []string{
		`//div[contains(text(), %s)]`,
		`//button[contains(text(), %s)]`,
		`//a[contains(text(), %s)]`,
		`//span[contains(text(), %s)]`,
		`//*[contains(text(), %s)]`,
	}

	candidates := make([]Candidate, 0, len(patterns))
	for _, pattern := range patterns {
		candidates = append(candidates, Candidate{
			Selector: fmt.Sprintf(pattern, literal),
			Timeout:  timeout,
		})
	}

	return candidates
}

func formHeadingLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//span[contains(text(), 'Add your details')]`, Timeout: timeout},
		{Selector: `//h2[contains(text(), 'Add your details')]`, Timeout: timeout},
	}
}

func nameFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@placeholder='First and surname']`, Timeout: timeout},
	}
}

func emailFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@type='email'][@placeholder='Email']`, Timeout: timeout},
		{Selector: `//input[@type='email']`, Timeout: timeout},
	}
}

func addressFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@placeholder='Address']`, Timeout: timeout},
	}
}

func phoneFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@type='tel'][@placeholder='Add your phone number']`, Timeout: timeout},
		{Selector: `//input[@type='tel']`, Timeout: timeout},
	}
}

func notesFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//textarea[@placeholder='Add any special requests']`, Timeout: timeout},
	}
}

func membershipFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@aria-labelledby='TextFieldLabel69']`, Timeout: timeout},
		{Selector: `//label[contains(text(), 'Membership Number')]/following-sibling::div//input`, Timeout: timeout},
	}
}

func opponentFieldLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//input[@aria-labelledby='TextFieldLabel74']`, Timeout: timeout},
		{Selector: `//label[contains(text(), 'Opponent')]/following-sibling::div//input`, Timeout: timeout},
	}
}

func consentCheckboxLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `#consentCheckBox`, Timeout: timeout},
		{Selector: `//input[@type='checkBox'][@id='consentCheckBox']`, Timeout: timeout},
	}
}

func submitButtonLocators(timeout time.Duration) []Candidate {
	return []Candidate{
		{Selector: `//button[@type='submit'][@aria-label='Book']`, Timeout: timeout},
		{Selector: `button.i9DXY`, Timeout: timeout},
		{Selector: `//button[contains(text(), 'Book')]`, Timeout: timeout},
	}
}

// xpathLiteral renders text as an XPath 1.0 string literal. XPath has no
// escape syntax inside literals, so text containing a single quote is split
// into a concat() of quote-free pieces.
func xpathLiteral(text string) string {
	if !strings.Contains(text, "'") {
		return "'" + text + "'"
	}

	parts := strings.Split(text, "'")
	pieces := make([]string, 0, 2*len(parts)-1)

	for i, part := range parts {
		if i > 0 {
			pieces = append(pieces, `"'"`)
		}

		if part != "" {
			pieces = append(pieces, "'"+part+"'")
		}
	}

	if len(pieces) == 1 {
		return pieces[0]
	}

	return "concat(" + strings.Join(pieces, ", ") + ")"
}
