package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/entity"
	"squash-booking-bot/pkg/apperr"
	"squash-booking-bot/pkg/logg"
	"squash-booking-bot/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	engineName   = "BookingEngine"
	engineTracer = "browser.engine"

	// The site animates between picker views; clicks need a beat to land.
	transitionDelay = 2 * time.Second
	slotRenderDelay = 1 * time.Second
)

// Engine wraps one headless browser and exposes the high-level booking
// operations. Exclusively owned by a single session for its whole lifetime.
type Engine struct {
	config *config.Config
	logger *zap.Logger
	tracer trace.Tracer

	pw             *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page

	released bool
}

func newEngine(
	conf *config.Config,
	logger *zap.Logger,
	pw *playwright.Playwright,
	browser playwright.Browser,
	browserContext playwright.BrowserContext,
	page playwright.Page,
) *Engine {
	return &Engine{
		config:         conf,
		logger:         logger.With(zap.String(logg.Layer, engineName)),
		tracer:         otel.Tracer(engineTracer),
		pw:             pw,
		browser:        browser,
		browserContext: browserContext,
		page:           page,
	}
}

func (e *Engine) navTimeout() time.Duration {
	return time.Duration(e.config.BrowserConfig.NavTimeout) * time.Millisecond
}

func (e *Engine) waitTimeout() time.Duration {
	return time.Duration(e.config.BrowserConfig.WaitTimeout) * time.Millisecond
}

func (e *Engine) candidateTimeout() time.Duration {
	return time.Duration(e.config.BrowserConfig.CandidateTimeout) * time.Millisecond
}

func (e *Engine) settleDelay() time.Duration {
	return time.Duration(e.config.BrowserConfig.SettleDelay) * time.Millisecond
}

// OpenBookingPage navigates to the booking URL and waits for the page to
// become minimally interactive.
func (e *Engine) OpenBookingPage(ctx context.Context) (err error) {
	const op = "OpenBookingPage"
	url := e.config.BookingConfig.URL
	logger := e.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if e.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	step.AddEvent("navigating to booking page")

	_, err = e.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(e.navTimeout().Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeNavigation, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	_, err = e.page.WaitForSelector(pageReadySelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(e.navTimeout().Milliseconds())),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeNavigation, err, map[string]any{
			apperr.MetaReason: "page_never_ready",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	step.AddEvent("booking page ready")

	return nil
}

// SelectResource locates and clicks the configured resource affordance
// ("Squash Court") through the fallback locator list.
func (e *Engine) SelectResource(ctx context.Context) (err error) {
	const op = "SelectResource"
	name := e.config.BookingConfig.ResourceName
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op, attribute.String("resource", name))
	defer func() {
		step.End(err)
	}()

	if e.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	resolved, ok := ResolveLocator(e.page, resourceLocators(name, e.candidateTimeout()), DisplayedAndEnabled)
	if !ok {
		return apperr.Wrap(op, apperr.CodeResourceNotFound, fmt.Errorf("no locator matched resource %q", name), map[string]any{
			apperr.MetaReason: "resource_not_found",
			apperr.MetaStage:  apperr.StageResource,
		})
	}

	logger.Debug("Resource located", zap.String(logg.Selector, resolved.Selector))
	step.AddEvent("clicking resource")

	// Script-level click: pointer clicks intermittently miss during the
	// site's animated transitions.
	if _, err = resolved.Handle.Evaluate(`el => el.click()`); err != nil {
		return apperr.Wrap(op, apperr.CodeResourceNotFound, err, map[string]any{
			apperr.MetaReason:   "resource_click_failed",
			apperr.MetaStage:    apperr.StageResource,
			apperr.MetaSelector: resolved.Selector,
		})
	}

	time.Sleep(transitionDelay)
	step.AddEvent("resource selected")

	return nil
}

// SelectDate clicks the calendar cell whose day-of-month equals day and
// whose accessible label marks it available. A day present but disabled is
// date_unavailable; a day absent entirely is date_not_found.
func (e *Engine) SelectDate(ctx context.Context, day int) (err error) {
	const op = "SelectDate"
	logger := e.logger.With(zap.String(logg.Operation, op), zap.Int(logg.Day, day))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op, attribute.Int("day", day))
	defer func() {
		step.End(err)
	}()

	if e.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	if day < 1 || day > 31 {
		return apperr.InvalidReqError(op, "day", fmt.Errorf("day %d out of range", day))
	}

	_, err = e.page.WaitForSelector(datePickerSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(e.waitTimeout().Milliseconds())),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeDateNotFound, err, map[string]any{
			apperr.MetaReason: "date_picker_missing",
			apperr.MetaStage:  apperr.StageDate,
		})
	}

	cells, err := e.page.QuerySelectorAll(dateCellSelector)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeDateNotFound, err, map[string]any{
			apperr.MetaReason: "date_cells_query_failed",
			apperr.MetaStage:  apperr.StageDate,
		})
	}

	step.AddEvent("scanning date cells", attribute.Int("cells", len(cells)))

	dayPresent := false

	for _, cell := range cells {
		text, textErr := cell.TextContent()
		if textErr != nil {
			continue
		}

		cellDay, ok := leadingDayNumber(strings.TrimSpace(text))
		if !ok || cellDay != day {
			continue
		}

		dayPresent = true

		if !e.dateCellAvailable(cell) {
			continue
		}

		step.AddEvent("clicking date cell")

		if _, err = cell.Evaluate(`el => el.click()`); err != nil {
			return apperr.Wrap(op, apperr.CodeDateUnavailable, err, map[string]any{
				apperr.MetaReason: "date_click_failed",
				apperr.MetaStage:  apperr.StageDate,
				apperr.MetaDay:    day,
			})
		}

		time.Sleep(transitionDelay)

		return nil
	}

	if !dayPresent {
		return apperr.Wrap(op, apperr.CodeDateNotFound, fmt.Errorf("day %d not present in date picker", day), map[string]any{
			apperr.MetaReason: "day_not_found",
			apperr.MetaStage:  apperr.StageDate,
			apperr.MetaDay:    day,
		})
	}

	return apperr.Wrap(op, apperr.CodeDateUnavailable, fmt.Errorf("day %d has no available cell", day), map[string]any{
		apperr.MetaReason: "day_unavailable",
		apperr.MetaStage:  apperr.StageDate,
		apperr.MetaDay:    day,
	})
}

func (e *Engine) dateCellAvailable(cell playwright.ElementHandle) bool {
	enabled, err := cell.IsEnabled()
	if err != nil || !enabled {
		return false
	}

	label, err := cell.GetAttribute("aria-label")
	if err != nil {
		return false
	}

	lower := strings.ToLower(label)
	if strings.Contains(lower, "not available") || strings.Contains(lower, "unavailable") {
		return false
	}

	return strings.Contains(lower, "available")
}

// ExtractTimeSlots waits for the time picker to populate and snapshots every
// slot it shows. A loaded picker with zero slots is a legitimate fully-booked
// outcome and returns an empty slice, not an error.
func (e *Engine) ExtractTimeSlots(ctx context.Context) (slots []entity.TimeSlot, err error) {
	const op = "ExtractTimeSlots"
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if e.released {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	_, err = e.page.WaitForSelector(timePickerSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(e.waitTimeout().Milliseconds())),
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeTimeSlotLoad, err, map[string]any{
			apperr.MetaReason: "time_picker_missing",
			apperr.MetaStage:  apperr.StageTimeSlots,
		})
	}

	step.AddEvent("time picker present")

	// No items appearing is "fully booked", distinct from the picker itself
	// failing to load.
	_, itemErr := e.page.WaitForSelector(timePickerAnyItem, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(e.waitTimeout().Milliseconds())),
	})
	if itemErr != nil {
		logger.Info("Time picker loaded with no slot items")

		return []entity.TimeSlot{}, nil
	}

	time.Sleep(slotRenderDelay)

	for _, selector := range slotItemSelectors {
		items, queryErr := e.page.QuerySelectorAll(selector)
		if queryErr != nil || len(items) == 0 {
			continue
		}

		extracted := make([]entity.TimeSlot, 0, len(items))

		for _, item := range items {
			text, textErr := item.TextContent()
			if textErr != nil {
				continue
			}

			label := strings.TrimSpace(text)
			if label == "" {
				continue
			}

			enabled, _ := item.IsEnabled()
			visible, _ := item.IsVisible()

			extracted = append(extracted, entity.TimeSlot{
				Label:    label,
				Bookable: enabled && visible,
			})
		}

		if len(extracted) > 0 {
			logger.Info("Time slots extracted",
				zap.String(logg.Selector, selector),
				zap.Int("count", len(extracted)))
			step.AddEvent("slots extracted", attribute.Int("count", len(extracted)))

			return extracted, nil
		}
	}

	return []entity.TimeSlot{}, nil
}

// ClickTimeSlot re-locates the slot by its display text and clicks the
// enclosing label via script. The visual confirmation heuristic is
// unreliable across site versions, so its failure is logged, never fatal.
func (e *Engine) ClickTimeSlot(ctx context.Context, slot entity.TimeSlot) (err error) {
	const op = "ClickTimeSlot"
	logger := e.logger.With(zap.String(logg.Operation, op), zap.String(logg.Slot, slot.Label))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op, attribute.String("slot", slot.Label))
	defer func() {
		step.End(err)
	}()

	if e.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	label := xpathLiteral(strings.TrimSpace(slot.Label))

	for _, pattern := range slotTextPatterns {
		selector := fmt.Sprintf(pattern, label)

		handle, queryErr := e.page.QuerySelector(selector)
		if queryErr != nil || handle == nil {
			continue
		}

		if !DisplayedAndEnabled(handle) {
			continue
		}

		step.AddEvent("clicking slot", attribute.String("selector", selector))

		if _, clickErr := handle.Evaluate(`el => { const target = el.closest('label') || el; target.click(); }`); clickErr != nil {
			logger.Warn("Slot click strategy failed", zap.String(logg.Selector, selector), zap.Error(clickErr))

			continue
		}

		time.Sleep(slotRenderDelay)

		if !e.slotSelectionConfirmed(handle) {
			logger.Warn("Slot click not visually confirmed, accepting as provisional success")
			step.AddEvent("selection unconfirmed")
		}

		return nil
	}

	return apperr.Wrap(op, apperr.CodeTimeSlotLoad, fmt.Errorf("slot %q could not be located", slot.Label), map[string]any{
		apperr.MetaReason: "slot_relocate_failed",
		apperr.MetaStage:  apperr.StageSlotClick,
		apperr.MetaSlot:   slot.Label,
	})
}

func (e *Engine) slotSelectionConfirmed(handle playwright.ElementHandle) bool {
	result, err := handle.Evaluate(selectionCheckScript())
	if err != nil {
		return false
	}

	confirmed, ok := result.(bool)

	return ok && confirmed
}

func selectionCheckScript() string {
	colors, _ := json.Marshal(selectedSlotColors)
	keywords, _ := json.Marshal(selectionClassKeywords)

	return fmt.Sprintf(`el => {
		const colors = %s;
		const keywords = %s;
		const target = el.closest('label') || el;
		const matches = (value) => !!value && colors.some(c => value.toLowerCase().includes(c.toLowerCase()));

		const nodes = [target, target.parentElement, ...target.querySelectorAll('*')];
		for (const node of nodes) {
			if (!node) continue;
			const style = window.getComputedStyle(node);
			if (matches(style.backgroundColor) || matches(style.borderColor) || matches(style.outlineColor)) {
				return true;
			}
		}

		const parent = target.parentElement;
		const classes = ((target.className || '') + ' ' + ((parent && parent.className) || '')).toLowerCase();
		if (keywords.some(k => classes.includes(k))) return true;

		if (target.getAttribute('aria-selected') === 'true') return true;
		if (target.getAttribute('aria-pressed') === 'true') return true;
		if (target.getAttribute('aria-current')) return true;

		return false;
	}`, colors, keywords)
}

type formField struct {
	name     string
	value    string
	locators []Candidate
}

// FillForm waits for the details form and best-effort fills every field.
// Individual field failures are logged and skipped; the operation only fails
// if the form heading never appears.
func (e *Engine) FillForm(ctx context.Context, profile entity.BookingProfile) (err error) {
	const op = "FillForm"
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if e.released {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	if _, ok := ResolveLocator(e.page, formHeadingLocators(e.waitTimeout()), Present); !ok {
		return apperr.Wrap(op, apperr.CodeTimeout, fmt.Errorf("details form never appeared"), map[string]any{
			apperr.MetaReason: "form_heading_missing",
			apperr.MetaStage:  apperr.StageForm,
		})
	}

	step.AddEvent("form located")

	timeout := e.candidateTimeout()
	fields := []formField{
		{name: "full_name", value: profile.FullName, locators: nameFieldLocators(timeout)},
		{name: "email", value: profile.Email, locators: emailFieldLocators(timeout)},
		{name: "address", value: profile.Address, locators: addressFieldLocators(timeout)},
		{name: "phone", value: profile.Phone, locators: phoneFieldLocators(timeout)},
		{name: "special_requests", value: profile.SpecialRequests, locators: notesFieldLocators(timeout)},
		{name: "membership_number", value: profile.MembershipNumber, locators: membershipFieldLocators(timeout)},
		{name: "opponent_name", value: profile.OpponentName, locators: opponentFieldLocators(timeout)},
	}

	filled := 0

	for _, field := range fields {
		if e.fillField(field) {
			filled++
		} else {
			logger.Warn("Field could not be filled", zap.String(logg.Selector, field.name))
		}
	}

	if !e.checkConsent(timeout) {
		logger.Warn("Consent checkbox could not be checked")
	}

	logger.Info("Form fill attempted", zap.Int("filled", filled), zap.Int("total", len(fields)))
	step.AddEvent("form filled", attribute.Int("filled", filled))

	return nil
}

func (e *Engine) fillField(field formField) bool {
	resolved, ok := ResolveLocator(e.page, field.locators, Present)
	if !ok {
		return false
	}

	if err := resolved.Handle.Fill(field.value); err != nil {
		return false
	}

	return true
}

func (e *Engine) checkConsent(timeout time.Duration) bool {
	resolved, ok := ResolveLocator(e.page, consentCheckboxLocators(timeout), Present)
	if !ok {
		return false
	}

	checked, err := resolved.Handle.IsChecked()
	if err == nil && checked {
		return true
	}

	if _, err := resolved.Handle.Evaluate(`el => el.click()`); err != nil {
		return false
	}

	return true
}

// SubmitForm clicks the submit control through its fallback locators and
// waits a fixed settle period for the confirmation view. A missing submit
// control is a typed false result, not an error.
func (e *Engine) SubmitForm(ctx context.Context) (submitted bool, err error) {
	const op = "SubmitForm"
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if e.released {
		return false, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "engine_released")
	}

	resolved, ok := ResolveLocator(e.page, submitButtonLocators(e.candidateTimeout()), DisplayedAndEnabled)
	if !ok {
		logger.Warn("No submit button locator succeeded")

		return false, nil
	}

	step.AddEvent("clicking submit", attribute.String("selector", resolved.Selector))

	if _, err = resolved.Handle.Evaluate(`el => el.click()`); err != nil {
		return false, apperr.Wrap(op, apperr.CodeSubmitFailed, err, map[string]any{
			apperr.MetaReason:   "submit_click_failed",
			apperr.MetaStage:    apperr.StageSubmit,
			apperr.MetaSelector: resolved.Selector,
		})
	}

	time.Sleep(e.settleDelay())
	step.AddEvent("submit settled")

	return true, nil
}

// Release tears the browser down. Safe to call more than once; only the
// first call touches the underlying processes.
func (e *Engine) Release(ctx context.Context) (err error) {
	const op = "Release"
	logger := e.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, e.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if e.released {
		return nil
	}

	e.released = true
	logger.Info("Releasing browser")

	if e.browserContext != nil {
		if closeErr := e.browserContext.Close(); closeErr != nil {
			logger.Warn("Failed to close context", zap.Error(closeErr))
		}
	}

	if e.browser != nil {
		if closeErr := e.browser.Close(); closeErr != nil {
			logger.Warn("Failed to close browser", zap.Error(closeErr))
		}
	}

	if e.pw != nil {
		if stopErr := e.pw.Stop(); stopErr != nil {
			logger.Warn("Failed to stop driver", zap.Error(stopErr))
		}
	}

	logger.Info("Browser released")

	return nil
}

func leadingDayNumber(text string) (int, bool) {
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}

	if end == 0 {
		return 0, false
	}

	day, err := strconv.Atoi(text[:end])
	if err != nil {
		return 0, false
	}

	return day, true
}
