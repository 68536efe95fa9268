package telegram

import (
	"context"
	"fmt"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/internal/session"
	"squash-booking-bot/pkg/logg"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pollerName = "TelegramPoller"

// Poller long-polls the Telegram API and feeds each message into the per-chat
// dispatcher. Handling runs off the poll loop, so a session stuck in a
// multi-second browser wait never stalls other chats, and messages from one
// chat keep their arrival order.
type Poller struct {
	config     *config.Config
	logger     *zap.Logger
	registry   *session.Registry
	dispatcher *Dispatcher

	bot  *tgbotapi.BotAPI
	done chan struct{}
}

type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Registry *session.Registry
}

func NewPoller(params Params) *Poller {
	p := &Poller{
		config:   params.Config,
		logger:   params.Logger.With(zap.String(logg.Layer, pollerName)),
		registry: params.Registry,
		done:     make(chan struct{}),
	}
	p.dispatcher = NewDispatcher(p.logger, p.handleMessage)

	return p
}

func (p *Poller) handleMessage(ctx context.Context, chatID int64, text string) {
	sess := p.registry.Session(chatID, p.replier(chatID))
	sess.Handle(ctx, text)
}

func (p *Poller) Start(ctx context.Context) error {
	token := p.config.BotConfig.TelegramToken
	if token == "" {
		return fmt.Errorf("telegram token is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}

	p.bot = bot
	p.logger.Info("Telegram polling started", zap.String("bot", bot.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = p.config.BotConfig.PollTimeout

	updates := bot.GetUpdatesChan(updateConfig)

	go p.loop(ctx, updates)

	return nil
}

func (p *Poller) Stop() {
	if p.bot != nil {
		p.bot.StopReceivingUpdates()
	}

	close(p.done)
}

func (p *Poller) loop(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			message := update.Message
			if message == nil || message.Text == "" {
				continue
			}

			chatID := message.Chat.ID
			p.logger.Debug("Message received", zap.Int64(logg.ChatID, chatID))

			p.dispatcher.Dispatch(ctx, chatID, message.Text)
		}
	}
}

func (p *Poller) replier(chatID int64) ports.ReplyFunc {
	return func(text string) {
		if _, err := p.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			p.logger.Warn("Reply send failed", zap.Int64(logg.ChatID, chatID), zap.Error(err))
		}
	}
}
