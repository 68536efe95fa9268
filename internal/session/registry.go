package session

import (
	"context"
	"sync"
	"time"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/entity"
	"squash-booking-bot/internal/metrics"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const registryName = "SessionRegistry"

// Registry tracks one session per chat. Sessions are created on first
// command and torn down after the idle timeout, releasing any browser they
// still hold.
type Registry struct {
	logger      *zap.Logger
	factory     ports.EngineFactory
	profile     entity.BookingProfile
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[int64]*Session
}

type RegistryParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Factory ports.EngineFactory
}

func NewRegistry(params RegistryParams) *Registry {
	profileConf := params.Config.ProfileConfig

	return &Registry{
		logger:  params.Logger.With(zap.String(logg.Layer, registryName)),
		factory: params.Factory,
		profile: entity.BookingProfile{
			FullName:         profileConf.FullName,
			Email:            profileConf.Email,
			Address:          profileConf.Address,
			Phone:            profileConf.Phone,
			SpecialRequests:  profileConf.SpecialRequests,
			MembershipNumber: profileConf.MembershipNumber,
			OpponentName:     profileConf.OpponentName,
		},
		idleTimeout: time.Duration(params.Config.BotConfig.SessionTimeout) * time.Minute,
		sessions:    make(map[int64]*Session),
	}
}

// Session returns the chat's session, creating it on first contact.
func (r *Registry) Session(chatID int64, reply ports.ReplyFunc) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[chatID]; ok {
		return existing
	}

	created := New(chatID, r.factory, r.profile, reply, r.logger)
	r.sessions[chatID] = created

	r.logger.Info("Session created", zap.Int64(logg.ChatID, chatID))
	metrics.SetActiveSessions(len(r.sessions))

	return created
}

// Sweep expires and removes sessions idle for longer than the timeout.
func (r *Registry) Sweep(ctx context.Context) {
	r.mu.Lock()

	var stale []*Session

	cutoff := time.Now().Add(-r.idleTimeout)

	for chatID, sess := range r.sessions {
		if sess.LastActive().Before(cutoff) {
			stale = append(stale, sess)
			delete(r.sessions, chatID)
		}
	}

	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, sess := range stale {
		sess.Expire(ctx)
	}

	if len(stale) > 0 {
		r.logger.Info("Idle sessions swept", zap.Int("swept", len(stale)), zap.Int("remaining", remaining))
		metrics.SetActiveSessions(remaining)
	}
}

// Drain expires every session; used at shutdown so no browser outlives the
// process.
func (r *Registry) Drain(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))

	for _, sess := range r.sessions {
		all = append(all, sess)
	}

	r.sessions = make(map[int64]*Session)
	r.mu.Unlock()

	for _, sess := range all {
		sess.Expire(ctx)
	}

	metrics.SetActiveSessions(0)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
