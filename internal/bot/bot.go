// Package bot is the Telegram transport: it long-polls for messages and
// replies to each text message with the integer answer.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/vidstat-lab/vidstat/internal/answer"
)

// Config holds the bot transport settings.
type Config struct {
	Token          string
	PollTimeoutSec int
	Debug          bool
}

// Bot answers questions arriving over Telegram.
type Bot struct {
	api     *tgbotapi.BotAPI
	answers *answer.Service
	logger  *slog.Logger
	timeout int
}

// New authorizes against the Telegram API.
func New(cfg Config, answers *answer.Service, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	api.Debug = cfg.Debug

	timeout := cfg.PollTimeoutSec
	if timeout <= 0 {
		timeout = 30
	}

	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:     api,
		answers: answers,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// Run long-polls for updates until the context is canceled. Every text
// message gets exactly one reply; failures degrade to "0" so the contract
// holds even when the database is down.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping telegram bot")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			if update.Message.IsCommand() || update.Message.Text == "" {
				b.sendReply(update.Message.Chat.ID, answer.ZeroReply)
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	requestID := uuid.NewString()

	reply, err := b.answers.Answer(ctx, message.Text)
	if err != nil {
		b.logger.Error("answer pipeline failed",
			"request_id", requestID,
			"chat_id", message.Chat.ID,
			"error", err)
		reply = answer.ZeroReply
	}

	b.sendReply(message.Chat.ID, reply)
}

func (b *Bot) sendReply(chatID int64, reply string) {
	msg := tgbotapi.NewMessage(chatID, reply)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send telegram reply",
			"chat_id", chatID,
			"error", err)
	}
}
