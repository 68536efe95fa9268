package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Candidate is one (selector, wait-timeout) pair for a semantic target.
// Candidates are tried in order; per-candidate timeouts are kept short so
// that exhausting a whole fallback list stays within one operation budget.
type Candidate struct {
	Selector string
	Timeout  time.Duration
}

// Predicate decides whether a located element is usable.
type Predicate func(playwright.ElementHandle) bool

// Resolved carries the winning element together with the selector that
// produced it, for logging.
type Resolved struct {
	Handle   playwright.ElementHandle
	Selector string
}

// Page is the slice of playwright.Page the resolver needs. Keeping it this
// narrow makes the fallback order testable without a live browser.
type Page interface {
	WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error)
}

// DisplayedAndEnabled is the common usability predicate.
func DisplayedAndEnabled(el playwright.ElementHandle) bool {
	visible, err := el.IsVisible()
	if err != nil || !visible {
		return false
	}

	enabled, err := el.IsEnabled()
	if err != nil || !enabled {
		return false
	}

	return true
}

// Present accepts any located element.
func Present(playwright.ElementHandle) bool {
	return true
}

// ResolveLocator tries each candidate in order with its own bounded wait and
// returns the first element satisfying pred. Exhausting every candidate is a
// normal not-found outcome (ok=false), not an error.
func ResolveLocator(page Page, candidates []Candidate, pred Predicate) (Resolved, bool) {
	for _, candidate := range candidates {
		handle, err := page.WaitForSelector(candidate.Selector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(float64(candidate.Timeout.Milliseconds())),
			State:   playwright.WaitForSelectorStateAttached,
		})
		if err != nil || handle == nil {
			continue
		}

		if pred(handle) {
			return Resolved{Handle: handle, Selector: candidate.Selector}, true
		}
	}

	return Resolved{}, false
}
