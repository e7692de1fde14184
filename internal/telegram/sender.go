// Package telegram connects the rumour service to Telegram: a long-polling bot
// that turns messages into claims, and a sender used for replies and broadcasts.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of *tgbotapi.BotAPI the package uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Connect authenticates with the Bot API
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

// Sender delivers Markdown text messages
type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// SendText sends text to chatID, which is a numeric chat id or an @channel name.
// Text Telegram refuses to parse as Markdown is resent as plain text.
func (s *Sender) SendText(ctx context.Context, chatID, text string) error {
	msg, err := newMessage(chatID, text)
	if err != nil {
		return err
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	return s.sendMarkdown(ctx, msg)
}

// sendMarkdown sends msg and retries once without a parse mode if the API
// rejects it. Context errors are returned as is.
func (s *Sender) sendMarkdown(ctx context.Context, msg tgbotapi.MessageConfig) error {
	err := s.send(ctx, msg)
	if err == nil || msg.ParseMode == "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg.ParseMode = ""
	if plainErr := s.send(ctx, msg); plainErr != nil {
		return fmt.Errorf("markdown rejected (%v), plain text failed: %w", err, plainErr)
	}
	return nil
}

// send runs the blocking Bot API call so that ctx can bound it
func (s *Sender) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text), nil
	}
	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	return tgbotapi.MessageConfig{}, fmt.Errorf("invalid telegram chat id: %q", chatID)
}
