package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"squash-booking-bot/internal/entity"
	"squash-booking-bot/internal/metrics"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/pkg/apperr"
	"squash-booking-bot/pkg/logg"
	"squash-booking-bot/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	sessionName   = "BookingSession"
	sessionTracer = "session.booking"

	bookCommand  = "/book"
	cancelToken  = "cancel"
	confirmToken = "confirm"
)

// Session is the per-chat booking state machine. It owns at most one browser
// engine, acquired when a booking command is accepted and released on every
// terminal transition. Handle is serialized by the session mutex, so browser
// operations for one chat never overlap.
type Session struct {
	id      uuid.UUID
	chatID  int64
	logger  *zap.Logger
	tracer  trace.Tracer
	factory ports.EngineFactory
	profile entity.BookingProfile
	reply   ports.ReplyFunc

	mu      sync.Mutex
	state   entity.SessionState
	engine  ports.BookingEngine
	day     int
	slots   []entity.TimeSlot
	attempt *entity.BookingAttempt

	// lastActive sits behind its own mutex so the registry sweep can read it
	// while a booking sequence holds the session mutex.
	activeMu   sync.Mutex
	lastActive time.Time
}

func New(chatID int64, factory ports.EngineFactory, profile entity.BookingProfile, reply ports.ReplyFunc, logger *zap.Logger) *Session {
	id := uuid.New()

	return &Session{
		id:         id,
		chatID:     chatID,
		logger:     logger.With(zap.String(logg.Layer, sessionName), zap.String(logg.SessionID, id.String()), zap.Int64(logg.ChatID, chatID)),
		tracer:     otel.Tracer(sessionTracer),
		factory:    factory,
		profile:    profile,
		reply:      reply,
		state:      entity.StateIdle,
		lastActive: time.Now(),
	}
}

func (s *Session) State() entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) LastActive() time.Time {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	return s.lastActive
}

func (s *Session) touch() {
	s.activeMu.Lock()
	s.lastActive = time.Now()
	s.activeMu.Unlock()
}

// Handle processes one inbound chat message and drives the state machine.
func (s *Session) Handle(ctx context.Context, text string) {
	s.touch()

	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	lower := strings.ToLower(text)

	switch {
	case lower == "/start":
		metrics.RecordCommand("start")
		s.reply(msgWelcome)

		return
	case lower == "/help":
		metrics.RecordCommand("help")
		s.reply(msgHelp)

		return
	case lower == bookCommand || strings.HasPrefix(lower, bookCommand+" "):
		metrics.RecordCommand("book")
		s.handleBook(ctx, text)

		return
	}

	switch s.state {
	case entity.StateAwaitingSlotChoice:
		s.handleSlotChoice(ctx, text, lower)
	case entity.StateAwaitingConfirmation:
		s.handleConfirmation(ctx, lower)
	default:
		s.reply(msgUnknown)
	}
}

// Expire releases any held engine and resets the session to idle. Used by
// the registry's idle sweep and by shutdown.
func (s *Session) Expire(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == entity.StateIdle {
		return
	}

	s.logger.Info("Expiring session", zap.String(logg.State, string(s.state)))
	metrics.RecordSessionExpired()

	s.releaseEngine(ctx)
	s.toIdle()
}

func (s *Session) handleBook(ctx context.Context, text string) {
	const op = "handleBook"
	logger := s.logger.With(zap.String(logg.Operation, op))

	fields := strings.Fields(text)
	if len(fields) != 2 {
		s.reply(msgUsage)

		return
	}

	day, err := strconv.Atoi(fields[1])
	if err != nil || day < 1 || day > 31 {
		s.reply(msgInvalidDay)

		return
	}

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.Int("day", day))
	defer func() {
		step.End(nil)
	}()

	logger = logger.With(zap.Int(logg.Day, day))

	// A fresh booking command supersedes anything in flight.
	s.releaseEngine(ctx)
	s.toIdle()

	s.day = day
	s.reply(searchingMessage(day))
	metrics.RecordBookingStarted()

	step.AddEvent("acquiring engine")

	engine, err := s.factory.NewEngine(ctx)
	if err != nil {
		logger.Error("Engine acquisition failed", zap.Error(err))
		s.failBooking(err)

		return
	}

	s.engine = engine

	slots, err := s.lookupSlots(ctx, day)
	if err != nil {
		logger.Error("Slot lookup failed", zap.Error(err))
		s.releaseEngine(ctx)
		s.failBooking(err)

		return
	}

	if !anyBookable(slots) {
		logger.Info("No bookable slots", zap.Int("total", len(slots)))
		s.releaseEngine(ctx)
		s.toIdle()
		s.reply(noAvailabilityMessage(day))

		return
	}

	s.slots = slots
	s.state = entity.StateAwaitingSlotChoice
	s.attempt = &entity.BookingAttempt{
		ID:        uuid.New(),
		Day:       day,
		StartedAt: time.Now(),
	}

	logger.Info("Slots listed",
		zap.String(logg.BookingID, s.attempt.ID.String()),
		zap.Int("count", len(slots)))
	step.AddEvent("awaiting slot choice")

	s.reply(slotListingMessage(day, slots))
}

func (s *Session) lookupSlots(ctx context.Context, day int) ([]entity.TimeSlot, error) {
	if err := s.engine.OpenBookingPage(ctx); err != nil {
		return nil, err
	}

	if err := s.engine.SelectResource(ctx); err != nil {
		return nil, err
	}

	if err := s.engine.SelectDate(ctx, day); err != nil {
		return nil, err
	}

	return s.engine.ExtractTimeSlots(ctx)
}

func (s *Session) handleSlotChoice(ctx context.Context, text, lower string) {
	const op = "handleSlotChoice"
	logger := s.logger.With(zap.String(logg.Operation, op))

	if lower == cancelToken {
		s.cancel(ctx)

		return
	}

	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(s.slots) {
		s.reply(invalidChoiceMessage(len(s.slots)))

		return
	}

	slot := s.slots[n-1]
	if !slot.Bookable {
		s.reply(slotNotBookableMessage(n))

		return
	}

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("slot", slot.Label))
	defer func() {
		step.End(nil)
	}()

	logger = logger.With(zap.String(logg.Slot, slot.Label))
	step.AddEvent("clicking slot")

	if err := s.engine.ClickTimeSlot(ctx, slot); err != nil {
		logger.Error("Slot click failed", zap.Error(err))
		s.releaseEngine(ctx)
		s.failBooking(err)

		return
	}

	step.AddEvent("filling form")

	if err := s.engine.FillForm(ctx, s.profile); err != nil {
		logger.Error("Form fill failed", zap.Error(err))
		s.releaseEngine(ctx)
		s.failBooking(err)

		return
	}

	s.attempt.Slot = &slot
	s.state = entity.StateAwaitingConfirmation

	logger.Info("Slot selected, awaiting confirmation")

	s.reply(confirmationSummary(s.day, slot, s.profile))
}

func (s *Session) handleConfirmation(ctx context.Context, lower string) {
	const op = "handleConfirmation"
	logger := s.logger.With(zap.String(logg.Operation, op))

	switch lower {
	case cancelToken:
		s.cancel(ctx)
	case confirmToken:
		ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
		defer func() {
			step.End(nil)
		}()

		submitted, err := s.engine.SubmitForm(ctx)

		attempt := s.attempt
		slot := *attempt.Slot
		day := attempt.Day

		// Submit is terminal either way; no automatic retry.
		s.releaseEngine(ctx)
		s.toIdle()

		if err != nil || !submitted {
			if err != nil {
				logger.Error("Submit failed", zap.Error(err))
			} else {
				logger.Warn("No submit locator succeeded")
			}

			metrics.RecordBookingFailure("submit_failed")
			s.reply(msgSubmitMaybeFailed)

			return
		}

		logger.Info("Booking submitted",
			zap.String(logg.BookingID, attempt.ID.String()),
			zap.Int(logg.Day, day),
			zap.String(logg.Slot, slot.Label))
		metrics.RecordBookingCompleted()
		s.reply(bookedMessage(day, slot))
	default:
		s.reply(msgConfirmOrCancel)
	}
}

func (s *Session) cancel(ctx context.Context) {
	s.logger.Info("Booking cancelled by user", zap.String(logg.State, string(s.state)))

	s.releaseEngine(ctx)
	s.toIdle()
	s.reply(msgCancelled)
}

func (s *Session) failBooking(err error) {
	metrics.RecordBookingFailure(apperr.Code(err))
	s.toIdle()
	s.reply(failureReply(err))
}

// releaseEngine drops the session's browser handle. This must run on every
// exit path of a booking sequence; a leaked browser process is the dominant
// resource concern here.
func (s *Session) releaseEngine(ctx context.Context) {
	if s.engine == nil {
		return
	}

	if err := s.engine.Release(ctx); err != nil {
		s.logger.Warn("Engine release failed", zap.Error(err))
	}

	s.engine = nil
}

func (s *Session) toIdle() {
	s.state = entity.StateIdle
	s.day = 0
	s.slots = nil
	s.attempt = nil
}

func anyBookable(slots []entity.TimeSlot) bool {
	for _, slot := range slots {
		if slot.Bookable {
			return true
		}
	}

	return false
}
