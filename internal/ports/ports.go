package ports

import (
	"context"

	"squash-booking-bot/internal/entity"
)

// BookingEngine drives one headless browser through the booking flow.
// One engine per active session; never shared. Release must be safe to call
// more than once and must be invoked on every exit path.
type BookingEngine interface {
	OpenBookingPage(ctx context.Context) error
	SelectResource(ctx context.Context) error
	SelectDate(ctx context.Context, day int) error
	ExtractTimeSlots(ctx context.Context) ([]entity.TimeSlot, error)
	ClickTimeSlot(ctx context.Context, slot entity.TimeSlot) error
	FillForm(ctx context.Context, profile entity.BookingProfile) error
	SubmitForm(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// EngineFactory hands out a fresh engine (browser instance) per booking
// session.
type EngineFactory interface {
	NewEngine(ctx context.Context) (BookingEngine, error)
}

// ReplyFunc delivers one text reply to the chat that owns a session.
type ReplyFunc func(text string)
