package session

import (
	"context"
	"errors"
	"testing"

	"squash-booking-bot/internal/entity"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockEngine struct{ mock.Mock }

func (m *MockEngine) OpenBookingPage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) SelectResource(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEngine) SelectDate(ctx context.Context, day int) error {
	return m.Called(ctx, day).Error(0)
}

func (m *MockEngine) ExtractTimeSlots(ctx context.Context) ([]entity.TimeSlot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]entity.TimeSlot), args.Error(1)
}

func (m *MockEngine) ClickTimeSlot(ctx context.Context, slot entity.TimeSlot) error {
	return m.Called(ctx, slot).Error(0)
}

func (m *MockEngine) FillForm(ctx context.Context, profile entity.BookingProfile) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *MockEngine) SubmitForm(ctx context.Context) (bool, error) {
	args := m.Called(ctx)

	return args.Bool(0), args.Error(1)
}

func (m *MockEngine) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockFactory struct{ mock.Mock }

func (m *MockFactory) NewEngine(ctx context.Context) (ports.BookingEngine, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(ports.BookingEngine), args.Error(1)
}

var testProfile = entity.BookingProfile{
	FullName:         "Test Player",
	Email:            "player@example.com",
	MembershipNumber: "8060",
	OpponentName:     "-",
}

func newTestSession(factory ports.EngineFactory) (*Session, *[]string) {
	replies := &[]string{}

	sess := New(42, factory, testProfile, func(text string) {
		*replies = append(*replies, text)
	}, zap.NewNop())

	return sess, replies
}

func twoSlots() []entity.TimeSlot {
	return []entity.TimeSlot{
		{Label: "09:00 - 10:00", Bookable: true},
		{Label: "10:00 - 11:00", Bookable: false},
	}
}

// engineForLookup wires the happy-path lookup sequence onto a fresh mock.
func engineForLookup(day int, slots []entity.TimeSlot) *MockEngine {
	engine := &MockEngine{}
	engine.On("OpenBookingPage", mock.Anything).Return(nil)
	engine.On("SelectResource", mock.Anything).Return(nil)
	engine.On("SelectDate", mock.Anything, day).Return(nil)
	engine.On("ExtractTimeSlots", mock.Anything).Return(slots, nil)
	engine.On("Release", mock.Anything).Return(nil)

	return engine
}

func TestBookRejectsInvalidDays(t *testing.T) {
	for _, input := range []string{"/book 0", "/book 32", "/book abc", "/book", "/book 1 2"} {
		factory := &MockFactory{}
		sess, replies := newTestSession(factory)

		sess.Handle(context.Background(), input)

		assert.Equal(t, entity.StateIdle, sess.State(), "input %q", input)
		assert.Len(t, *replies, 1, "input %q", input)
		factory.AssertNotCalled(t, "NewEngine", mock.Anything)
	}
}

func TestBookListsSlots(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")

	assert.Equal(t, entity.StateAwaitingSlotChoice, sess.State())
	assert.Len(t, *replies, 2)

	listing := (*replies)[1]
	assert.Contains(t, listing, "1. 09:00 - 10:00 - available")
	assert.Contains(t, listing, "2. 10:00 - 11:00 - not available")

	engine.AssertNotCalled(t, "Release", mock.Anything)
}

func TestSlotChoiceMovesToConfirmation(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, twoSlots()[0]).Return(nil)
	engine.On("FillForm", mock.Anything, testProfile).Return(nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")

	assert.Equal(t, entity.StateAwaitingConfirmation, sess.State())

	summary := (*replies)[len(*replies)-1]
	assert.Contains(t, summary, "Day 15")
	assert.Contains(t, summary, "09:00 - 10:00")
	assert.Contains(t, summary, testProfile.FullName)
}

func TestConfirmSubmitsAndReleasesOnce(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, mock.Anything).Return(nil)
	engine.On("FillForm", mock.Anything, mock.Anything).Return(nil)
	engine.On("SubmitForm", mock.Anything).Return(true, nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")
	sess.Handle(context.Background(), "confirm")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Contains(t, (*replies)[len(*replies)-1], "submitted")
	engine.AssertNumberOfCalls(t, "Release", 1)
}

func TestSubmitWithoutLocatorReportsPartialFailure(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, mock.Anything).Return(nil)
	engine.On("FillForm", mock.Anything, mock.Anything).Return(nil)
	engine.On("SubmitForm", mock.Anything).Return(false, nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")
	sess.Handle(context.Background(), "confirm")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Equal(t, msgSubmitMaybeFailed, (*replies)[len(*replies)-1])
	engine.AssertNumberOfCalls(t, "Release", 1)
}

func TestTimeSlotLoadFailureReturnsToIdle(t *testing.T) {
	engine := &MockEngine{}
	engine.On("OpenBookingPage", mock.Anything).Return(nil)
	engine.On("SelectResource", mock.Anything).Return(nil)
	engine.On("SelectDate", mock.Anything, 5).Return(nil)
	engine.On("ExtractTimeSlots", mock.Anything).Return(nil,
		apperr.WrapErrorWithReason("ExtractTimeSlots", apperr.CodeTimeSlotLoad, "time_picker_missing"))
	engine.On("Release", mock.Anything).Return(nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 5")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Equal(t, msgSlotsFailed, (*replies)[len(*replies)-1])
	engine.AssertNumberOfCalls(t, "Release", 1)
}

func TestCancelReleasesFromAwaitingSlotChoice(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "cancel")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Equal(t, msgCancelled, (*replies)[len(*replies)-1])
	engine.AssertNumberOfCalls(t, "Release", 1)
}

func TestCancelReleasesFromAwaitingConfirmation(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, mock.Anything).Return(nil)
	engine.On("FillForm", mock.Anything, mock.Anything).Return(nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, _ := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")
	sess.Handle(context.Background(), "CANCEL")

	assert.Equal(t, entity.StateIdle, sess.State())
	engine.AssertNumberOfCalls(t, "Release", 1)
	engine.AssertNotCalled(t, "SubmitForm", mock.Anything)
}

func TestNonBookableChoiceStaysPut(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "2")

	assert.Equal(t, entity.StateAwaitingSlotChoice, sess.State())
	assert.Contains(t, (*replies)[len(*replies)-1], "not available")
	engine.AssertNotCalled(t, "ClickTimeSlot", mock.Anything, mock.Anything)
	engine.AssertNotCalled(t, "Release", mock.Anything)
}

func TestInvalidChoiceInputsStayPut(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")

	for _, input := range []string{"abc", "0", "9", "-1"} {
		sess.Handle(context.Background(), input)

		assert.Equal(t, entity.StateAwaitingSlotChoice, sess.State(), "input %q", input)
		assert.Contains(t, (*replies)[len(*replies)-1], "between 1 and 2", "input %q", input)
	}

	engine.AssertNotCalled(t, "ClickTimeSlot", mock.Anything, mock.Anything)
}

func TestUnknownInputInConfirmationPrompts(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, mock.Anything).Return(nil)
	engine.On("FillForm", mock.Anything, mock.Anything).Return(nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")
	sess.Handle(context.Background(), "maybe")

	assert.Equal(t, entity.StateAwaitingConfirmation, sess.State())
	assert.Equal(t, msgConfirmOrCancel, (*replies)[len(*replies)-1])
	engine.AssertNotCalled(t, "Release", mock.Anything)
}

func TestNoBookableSlotsRepliesNoAvailability(t *testing.T) {
	slots := []entity.TimeSlot{
		{Label: "09:00 - 10:00", Bookable: false},
	}

	engine := engineForLookup(15, slots)
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Contains(t, (*replies)[len(*replies)-1], "No available time slots")
	engine.AssertNumberOfCalls(t, "Release", 1)
}

func TestBookWhileAwaitingForceClosesPriorEngine(t *testing.T) {
	first := engineForLookup(15, twoSlots())
	second := engineForLookup(20, twoSlots())

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(first, nil).Once()
	factory.On("NewEngine", mock.Anything).Return(second, nil).Once()

	sess, _ := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "/book 20")

	assert.Equal(t, entity.StateAwaitingSlotChoice, sess.State())
	first.AssertNumberOfCalls(t, "Release", 1)
	second.AssertNotCalled(t, "Release", mock.Anything)
}

func TestEngineAcquisitionFailure(t *testing.T) {
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(nil,
		apperr.Wrap("NewEngine", apperr.CodePermission, errors.New("permission denied"), nil))

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Equal(t, msgContactAdmin, (*replies)[len(*replies)-1])
}

func TestSlotClickFailureReleasesAndResets(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	engine.On("ClickTimeSlot", mock.Anything, mock.Anything).Return(
		apperr.WrapErrorWithReason("ClickTimeSlot", apperr.CodeTimeSlotLoad, "slot_relocate_failed"))

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, replies := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")
	sess.Handle(context.Background(), "1")

	assert.Equal(t, entity.StateIdle, sess.State())
	assert.Equal(t, msgSlotsFailed, (*replies)[len(*replies)-1])
	engine.AssertNumberOfCalls(t, "Release", 1)
	engine.AssertNotCalled(t, "FillForm", mock.Anything, mock.Anything)
}

func TestExpireReleasesHeldEngine(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	sess, _ := newTestSession(factory)
	sess.Handle(context.Background(), "/book 15")

	sess.Expire(context.Background())

	assert.Equal(t, entity.StateIdle, sess.State())
	engine.AssertNumberOfCalls(t, "Release", 1)

	// Expiring an idle session is a no-op.
	sess.Expire(context.Background())
	engine.AssertNumberOfCalls(t, "Release", 1)
}
