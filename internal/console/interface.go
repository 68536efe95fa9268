package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/session"
	"squash-booking-bot/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// localChatID identifies the single stdin-backed session.
const localChatID int64 = 0

// Interface is a local stand-in for the chat transport: one session, stdin
// commands, stdout replies. Used when no Telegram token is configured.
type Interface struct {
	config   *config.Config
	logger   *zap.Logger
	registry *session.Registry
	done     chan struct{}
}

type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Registry *session.Registry
}

func NewInterface(params Params) *Interface {
	return &Interface{
		config:   params.Config,
		logger:   params.Logger.With(zap.String(logg.Layer, "Console")),
		registry: params.Registry,
		done:     make(chan struct{}),
	}
}

func (i *Interface) Start(ctx context.Context) error {
	fmt.Printf("%s booking bot (local console mode)\n", i.config.BookingConfig.ResourceName)
	fmt.Println("Commands: /book <day>, /help. Ctrl-D to quit.")

	sess := i.registry.Session(localChatID, func(text string) {
		fmt.Printf("\n%s\n", text)
	})

	scanner := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-i.done:
			return nil
		default:
		}

		fmt.Print("\n> ")

		if !scanner.Scan() {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		sess.Handle(ctx, input)
	}
}

func (i *Interface) Stop() {
	close(i.done)
}
