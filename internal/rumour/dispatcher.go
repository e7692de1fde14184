package rumour

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/store"
)

const defaultSendTimeout = 10 * time.Second

// Sender delivers a Markdown text message to one chat
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// ChatLister returns every known chat
type ChatLister interface {
	ListChats(ctx context.Context) ([]store.Chat, error)
}

// markdownEscaper escapes the entity characters of Telegram's legacy Markdown
var markdownEscaper = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// BroadcastText is the warning fanned out when a rumour crosses the threshold.
// The claim is user text, so it is escaped before it is embedded in Markdown.
func BroadcastText(normalized string, count int) string {
	return fmt.Sprintf("🚨 *Repeated Rumour Detected*\n\n\"%s\"\n\nThis rumour has been reported %d times.", markdownEscaper.Replace(normalized), count)
}

// Dispatcher fans broadcasts out to every chat on a background goroutine.
// Sends are sequential and a failed send never stops the rest.
type Dispatcher struct {
	sender  Sender
	chats   ChatLister
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil sender turns broadcasts into log lines.
func NewDispatcher(sender Sender, chats ChatLister, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		sender:  sender,
		chats:   chats,
		timeout: timeout,
		log:     log.With("component", "Dispatcher"),
		metrics: m,
	}
}

// Broadcast schedules text for delivery to all chats and returns immediately
func (d *Dispatcher) Broadcast(text string) {
	d.metrics.Broadcast()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(context.Background(), text)
	}()
}

// Wait blocks until every scheduled broadcast has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, text string) {
	if d.sender == nil {
		d.log.Warn("no sender configured, broadcast dropped", "text", text)
		return
	}

	chats, err := d.chats.ListChats(ctx)
	if err != nil {
		d.log.Error("failed to load chats for broadcast", "error", err)
		return
	}

	delivered := 0
	for _, chat := range chats {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sender.SendText(sendCtx, chat.ChatID, text)
		cancel()

		d.metrics.BroadcastSend(err)
		if err != nil {
			d.log.Warn("broadcast send failed", "chat_id", chat.ChatID, "error", err)
			continue
		}
		delivered++
	}

	d.log.Info("broadcast delivered", "chats", len(chats), "delivered", delivered)
}
