package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the conversational state of one chat session.
type SessionState string

const (
	StateIdle                 SessionState = "idle"
	StateAwaitingSlotChoice   SessionState = "awaiting_slot_choice"
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
)

// TimeSlot is a snapshot of one bookable interval from the venue's time
// picker. Bookable is true only if the underlying element was enabled and
// visible at capture time. Slots are read-only after capture.
type TimeSlot struct {
	Label    string
	Bookable bool
}

// BookingProfile holds the fixed personal details used to fill the booking
// form. Loaded once at startup, never mutated.
type BookingProfile struct {
	FullName         string
	Email            string
	Address          string
	Phone            string
	SpecialRequests  string
	MembershipNumber string
	OpponentName     string
}

// BookingAttempt tracks one pass through the booking flow, from the /book
// command until the session returns to idle.
type BookingAttempt struct {
	ID        uuid.UUID
	Day       int
	Slot      *TimeSlot
	StartedAt time.Time
}
