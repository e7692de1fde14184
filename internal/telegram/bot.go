package telegram

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/rumour"
)

const (
	platform      = "telegram"
	pollTimeout   = 60
	replyTimeout  = 10 * time.Second
	errorReply    = "⚠️ Error processing your request."
	unknownChat   = "Unknown"
	mentionEntity = "mention"
)

// Handler answers one claim
type Handler interface {
	Handle(ctx context.Context, req rumour.Request) (*rumour.Result, error)
}

// Bot long-polls for messages. Private messages are always claims; group
// messages only when they mention the bot.
type Bot struct {
	api      API
	sender   *Sender
	handler  Handler
	username string
	mention  *regexp.Regexp
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewBot creates a bot. username is the bot's @name without the @.
func NewBot(api API, handler Handler, username string, log *logger.Logger) *Bot {
	if log == nil {
		log = logger.Nop()
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return &Bot{
		api:      api,
		sender:   NewSender(api),
		handler:  handler,
		username: username,
		mention:  regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username)),
		log:      log.With("component", "TelegramBot"),
	}
}

// Run polls until ctx is cancelled or the update stream closes, then waits
// for in-flight messages
func (b *Bot) Run(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		b.log.Warn("failed to delete webhook", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("telegram bot polling", "username", b.username)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	claim, ok := b.ExtractClaim(msg)
	if !ok {
		return
	}

	// Shutdown must not abandon the rumour state half written or drop the reply
	ctx = context.WithoutCancel(ctx)

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	b.log.Debug("claim received", "chat_id", chatID, "private", msg.Chat.IsPrivate())

	res, err := b.handler.Handle(ctx, rumour.Request{
		Claim:       claim,
		ChatID:      chatID,
		DisplayName: ChatName(msg.Chat),
		MessageID:   strconv.Itoa(msg.MessageID),
		Platform:    platform,
	})
	if err != nil {
		b.log.Error("failed to handle claim", "chat_id", chatID, "error", err)
		b.reply(ctx, msg.Chat.ID, 0, errorReply, false)
		return
	}

	b.reply(ctx, msg.Chat.ID, msg.MessageID, res.Reply, true)
}

// reply sends text, retrying as plain text if Telegram rejects the Markdown
func (b *Bot) reply(ctx context.Context, chatID int64, replyTo int, text string, markdown bool) {
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.DisableWebPagePreview = true
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	if err := b.sender.sendMarkdown(sendCtx, msg); err != nil {
		b.log.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

// ExtractClaim returns the claim text of msg, or false if the bot should ignore it
func (b *Bot) ExtractClaim(msg *tgbotapi.Message) (string, bool) {
	if msg == nil || msg.Chat == nil {
		return "", false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", false
	}
	if msg.Chat.IsPrivate() {
		return text, true
	}

	if b.username == "" || !b.mentioned(msg) {
		return "", false
	}

	claim := strings.TrimSpace(b.mention.ReplaceAllString(msg.Text, ""))
	return claim, claim != ""
}

// mentioned reports whether a mention entity names this bot. Entity offsets
// count UTF-16 code units.
func (b *Bot) mentioned(msg *tgbotapi.Message) bool {
	encoded := utf16.Encode([]rune(msg.Text))
	want := "@" + b.username

	for _, entity := range msg.Entities {
		if entity.Type != mentionEntity {
			continue
		}
		end := entity.Offset + entity.Length
		if entity.Offset < 0 || end > len(encoded) {
			continue
		}
		if strings.EqualFold(string(utf16.Decode(encoded[entity.Offset:end])), want) {
			return true
		}
	}
	return false
}

// ChatName picks a display name: group title, then username, then first name
func ChatName(chat *tgbotapi.Chat) string {
	if chat == nil {
		return unknownChat
	}
	for _, name := range []string{chat.Title, chat.UserName, chat.FirstName} {
		if name != "" {
			return name
		}
	}
	return unknownChat
}
