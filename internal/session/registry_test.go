package session

import (
	"context"
	"testing"
	"time"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newTestRegistry(factory *MockFactory) *Registry {
	return NewRegistry(RegistryParams{
		Config: &config.Config{
			BotConfig: &config.BotConfig{SessionTimeout: 15},
			ProfileConfig: &config.ProfileConfig{
				FullName: "Test Player",
				Email:    "player@example.com",
			},
		},
		Logger:  zap.NewNop(),
		Factory: factory,
	})
}

func TestRegistryReturnsSameSessionPerChat(t *testing.T) {
	registry := newTestRegistry(&MockFactory{})

	first := registry.Session(1, func(string) {})
	again := registry.Session(1, func(string) {})
	other := registry.Session(2, func(string) {})

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, registry.Len())
}

func TestRegistrySweepExpiresIdleSessions(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	registry := newTestRegistry(factory)

	sess := registry.Session(1, func(string) {})
	sess.Handle(context.Background(), "/book 15")
	assert.Equal(t, entity.StateAwaitingSlotChoice, sess.State())

	// Not yet stale.
	registry.Sweep(context.Background())
	assert.Equal(t, 1, registry.Len())

	sess.activeMu.Lock()
	sess.lastActive = time.Now().Add(-time.Hour)
	sess.activeMu.Unlock()

	registry.Sweep(context.Background())

	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, entity.StateIdle, sess.State())
	engine.AssertNumberOfCalls(t, "Release", 1)
}

// A sweep coinciding with a session stuck in a long browser wait must not
// hold up session lookups for other chats.
func TestSweepDoesNotStallOnBusySession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	engine := &MockEngine{}
	engine.On("OpenBookingPage", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil)
	engine.On("SelectResource", mock.Anything).Return(nil)
	engine.On("SelectDate", mock.Anything, 15).Return(nil)
	engine.On("ExtractTimeSlots", mock.Anything).Return(twoSlots(), nil)
	engine.On("Release", mock.Anything).Return(nil)

	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	registry := newTestRegistry(factory)
	busy := registry.Session(1, func(string) {})

	done := make(chan struct{})
	go func() {
		busy.Handle(context.Background(), "/book 15")
		close(done)
	}()
	<-started

	start := time.Now()
	registry.Sweep(context.Background())
	other := registry.Session(2, func(string) {})
	elapsed := time.Since(start)

	close(release)
	<-done

	assert.NotNil(t, other)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryDrainReleasesEverything(t *testing.T) {
	engine := engineForLookup(15, twoSlots())
	factory := &MockFactory{}
	factory.On("NewEngine", mock.Anything).Return(engine, nil)

	registry := newTestRegistry(factory)

	active := registry.Session(1, func(string) {})
	active.Handle(context.Background(), "/book 15")
	registry.Session(2, func(string) {})

	registry.Drain(context.Background())

	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, entity.StateIdle, active.State())
	engine.AssertNumberOfCalls(t, "Release", 1)
}
