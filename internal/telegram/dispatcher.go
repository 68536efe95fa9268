package telegram

import (
	"context"
	"sync"

	"squash-booking-bot/pkg/logg"

	"go.uber.org/zap"
)

// queueSize bounds how many messages one chat can have waiting while its
// session is inside a browser sequence.
const queueSize = 64

// Dispatcher fans inbound messages out to one worker goroutine per chat.
// Messages from the same chat are handled strictly in arrival order, while a
// slow browser sequence in one chat never delays another chat's worker.
type Dispatcher struct {
	logger *zap.Logger
	handle func(ctx context.Context, chatID int64, text string)

	mu     sync.Mutex
	queues map[int64]chan string
}

func NewDispatcher(logger *zap.Logger, handle func(ctx context.Context, chatID int64, text string)) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		handle: handle,
		queues: make(map[int64]chan string),
	}
}

// Dispatch enqueues one message for its chat, starting the chat's worker on
// first contact. Enqueueing blocks only when the chat's own queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, text string) {
	d.mu.Lock()
	queue, ok := d.queues[chatID]
	if !ok {
		queue = make(chan string, queueSize)
		d.queues[chatID] = queue

		go d.worker(ctx, chatID, queue)
	}
	d.mu.Unlock()

	select {
	case queue <- text:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) worker(ctx context.Context, chatID int64, queue chan string) {
	d.logger.Debug("Chat worker started", zap.Int64(logg.ChatID, chatID))

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-queue:
			d.handle(ctx, chatID, text)
		}
	}
}
