package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdDNS    = "dns"
	cmdDNSOff = "dns_off"
)

// pauseChoices are the minute values offered as buttons under /dns.
var pauseChoices = []string{"5", "30", "60"}

func dnsKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(pauseChoices))
	for _, m := range pauseChoices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(m+" Min. pausieren", fmt.Sprintf("%s:%s", cmdDNSOff, m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdDNS:
		b.handleDNS(ctx, chatID)
	case cmdDNSOff:
		b.handleDNSOff(ctx, chatID, arg)
	}
}
