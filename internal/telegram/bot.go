package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/commands"
	"github.com/Parth0603/CryptoPulse/internal/dialog"
	"github.com/Parth0603/CryptoPulse/internal/market"
	"github.com/Parth0603/CryptoPulse/lib/helpers"
)

// commandTimeout bounds one inbound command end to end, covering the
// gateway's full pacing and retry budget.
const commandTimeout = 30 * time.Second

const genericApology = "Something went wrong. Please try again later."

// NewBot creates new telegram bot
func NewBot(c BotConfig, cmds *commands.Commands, machine *dialog.Machine) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:      bot,
		Config:   c,
		commands: cmds,
		machine:  machine,
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig)
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, helpers.EscapeMarkdownV2(m.Text))
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

// Notify implements the scheduler's notifier: it delivers one message to the
// owner identified by a stringified chat id.
func (b *Bot) Notify(owner, text string) error {
	chatID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "bad owner id %q", owner)
	}
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

// HandleMessage routes one inbound message: commands to their handlers,
// plain text to the dialogue machine when the owner awaits a price, and
// everything else to the void.
func (b *Bot) HandleMessage(msg *tgbotapi.Message) {
	owner := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.IsCommand() {
		b.handleCommand(msg, owner)
		return
	}

	reply, intercepted := b.machine.HandleText(owner, msg.Text)
	if !intercepted {
		log.Debugf("ignoring plain message from %s", owner)
		return
	}
	b.sendReply(msg.Chat.ID, reply)
}

// HandleCallbackQuery decodes an inline-button selection into a dialogue
// action and applies it.
func (b *Bot) HandleCallbackQuery(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	owner := strconv.FormatInt(chatID, 10)

	action, err := dialog.DecodeAction(cb.Data)
	if err != nil {
		log.Errorf("bad callback data %q: %v", cb.Data, err)
		b.answerCallback(cb.ID, "Unknown action. Please try again.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := b.machine.Handle(ctx, owner, action)
	if err != nil {
		log.Errorf("dialogue action failed for %s: %v", owner, err)
		b.answerCallback(cb.ID, genericApology)
		return
	}

	// Retire the old options keyboard so stale buttons cannot be pressed.
	if _, err := b.Bot.Request(tgbotapi.NewDeleteMessage(chatID, cb.Message.MessageID)); err != nil {
		log.Debugf("failed to delete options message: %v", err)
	}

	b.answerCallback(cb.ID, "")
	b.sendReply(chatID, reply)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message, owner string) {
	log.Debugf("received command: %s", msg.Command())

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var (
		text string
		err  error
	)

	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		text = commands.CommandStart()

	case "coin":
		if args == "" {
			text = "Usage: /coin <id>, e.g. /coin bitcoin"
			break
		}
		text, err = b.commands.CommandCoin(ctx, args)

	case "list":
		text = b.commands.CommandTop(ctx)

	case "alert":
		if args == "" {
			b.sendReply(msg.Chat.ID, b.machine.Start(ctx, owner))
			return
		}
		fields := strings.Fields(args)
		if len(fields) != 3 {
			text = "Usage: /alert <coin> <op> <price>, e.g. /alert bitcoin > 30000"
			break
		}
		var reply dialog.Reply
		reply, err = b.machine.CreateOneShot(ctx, owner, fields[0], fields[1], fields[2])
		if err == nil {
			b.sendReply(msg.Chat.ID, reply)
			return
		}

	case "alerts":
		text, err = b.commands.CommandAlerts(owner)

	case "addfav":
		if args == "" {
			text = "Usage: /addfav <id>, e.g. /addfav bitcoin"
			break
		}
		text, err = b.commands.CommandAddFavorite(ctx, owner, args)

	case "favlist":
		text, err = b.commands.CommandFavorites(owner)

	case "clearfavlist":
		text, err = b.commands.CommandClearFavorites(owner)

	default:
		text = commands.CommandStart()
	}

	if err != nil {
		log.Errorf("command /%s failed: %v", msg.Command(), err)
		text = renderError(err)
	}

	if text == "" {
		return
	}

	if err := b.SendMessage(Message{ChatID: msg.Chat.ID, MessageID: msg.MessageID, Text: text}); err != nil {
		log.Errorf("failed to send reply: %v", err)
	}
}

// renderError maps the error taxonomy to user-facing text. Only unknown-coin
// errors carry detail; everything else gets the generic apology.
func renderError(err error) string {
	if errors.Is(err, market.ErrCoinNotFound) {
		return "Coin not found. Coin ids are lowercase slugs like bitcoin."
	}
	return genericApology
}

func (b *Bot) sendReply(chatID int64, reply dialog.Reply) {
	if reply.Text == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(reply.Text))
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true

	if len(reply.Choices) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, choice := range reply.Choices {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(choice.Label, choice.Action.Encode()),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send dialogue reply: %v", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.Bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Debugf("failed to answer callback: %v", err)
	}
}
