package session

import (
	"fmt"
	"strings"

	"squash-booking-bot/internal/entity"
	"squash-booking-bot/pkg/apperr"
)

const (
	msgWelcome = "Hello! I can book the squash court for you.\nSend /book <day> to see the time slots for a day of this month."

	msgHelp = "Commands:\n" +
		"/book <day> - look up squash court slots for a day of the month (1-31)\n" +
		"/help - show this message\n\n" +
		"While choosing a slot, reply with the slot number or 'cancel'.\n" +
		"Before submitting, reply 'confirm' or 'cancel'."

	msgUsage      = "Usage: /book <day>, where <day> is a day of the month."
	msgInvalidDay = "That does not look like a valid day. Please send /book <day> with a day between 1 and 31."

	msgCancelled       = "Booking cancelled."
	msgConfirmOrCancel = "Please type 'confirm' to submit the booking or 'cancel' to abort."
	msgUnknown         = "I didn't understand that. Send /help for the list of commands."

	msgRetryLater        = "Something went wrong on the booking site. Please try again later."
	msgSlotsFailed       = "Failed to retrieve time slots. Please try again later."
	msgContactAdmin      = "The booking browser is not set up correctly on the server. Please contact the administrator."
	msgSubmitMaybeFailed = "The form was filled but the submission may have failed. Please check the venue's calendar."
)

func searchingMessage(day int) string {
	return fmt.Sprintf("Looking up squash court availability for day %d, give me a moment...", day)
}

func noAvailabilityMessage(day int) string {
	return fmt.Sprintf("No available time slots for day %d. The court looks fully booked.", day)
}

func slotListingMessage(day int, slots []entity.TimeSlot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Time slots for day %d:\n", day)

	for i, slot := range slots {
		marker := "available"
		if !slot.Bookable {
			marker = "not available"
		}

		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, slot.Label, marker)
	}

	b.WriteString("\nReply with the number of the slot you want, or 'cancel'.")

	return b.String()
}

func invalidChoiceMessage(max int) string {
	return fmt.Sprintf("Please reply with a slot number between 1 and %d, or 'cancel'.", max)
}

func slotNotBookableMessage(n int) string {
	return fmt.Sprintf("Slot %d is not available for booking. Pick one of the available slots, or 'cancel'.", n)
}

func confirmationSummary(day int, slot entity.TimeSlot, profile entity.BookingProfile) string {
	var b strings.Builder

	b.WriteString("Here is your booking:\n")
	fmt.Fprintf(&b, "Day %d, %s\n", day, slot.Label)
	fmt.Fprintf(&b, "Name: %s\n", profile.FullName)
	fmt.Fprintf(&b, "Email: %s\n", profile.Email)

	if profile.MembershipNumber != "" {
		fmt.Fprintf(&b, "Membership: %s\n", profile.MembershipNumber)
	}

	b.WriteString("\nType 'confirm' to submit it, or 'cancel' to abort.")

	return b.String()
}

func bookedMessage(day int, slot entity.TimeSlot) string {
	return fmt.Sprintf("Done! The booking for day %d, %s has been submitted.", day, slot.Label)
}

// failureReply converts an engine failure into the categorized user-facing
// message. Raw error detail never reaches the chat.
func failureReply(err error) string {
	switch apperr.Code(err) {
	case apperr.CodePermission:
		return msgContactAdmin
	case apperr.CodeBrowserLaunch, apperr.CodeNavigation:
		if mentionsDriver(err) {
			return msgContactAdmin
		}

		return msgRetryLater
	case apperr.CodeResourceNotFound, apperr.CodeDateNotFound, apperr.CodeDateUnavailable, apperr.CodeTimeSlotLoad:
		return msgSlotsFailed
	default:
		return msgRetryLater
	}
}

func mentionsDriver(err error) bool {
	text := strings.ToLower(err.Error())

	for _, hint := range []string{"driver", "executable", "install", "playwright", "chromium"} {
		if strings.Contains(text, hint) {
			return true
		}
	}

	return false
}
