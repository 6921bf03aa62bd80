package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

const (
	// telegramLimit stays under the 4096 character message cap
	telegramLimit  = 4000
	reasoningLimit = 200
)

// TelegramNotifier posts a grouped summary of new jobs to a chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier connects the bot with token
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, chatID, tgbotapi.APIEndpoint)
}

// NewTelegramNotifierWithEndpoint connects the bot against a custom Bot API endpoint
func NewTelegramNotifierWithEndpoint(token string, chatID int64, endpoint string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, errors.NewNotification("telegram", "failed to init telegram bot", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Name returns the notifier name
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// Notify sends the summary, split over several messages when long
func (t *TelegramNotifier) Notify(ctx context.Context, jobs []crawler.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	for i, text := range TelegramMessages(jobs) {
		if err := ctx.Err(); err != nil {
			return errors.NewNotification("telegram", "cancelled while sending", err)
		}
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return errors.NewNotification("telegram", fmt.Sprintf("failed to send message %d", i+1), err)
		}
	}
	logger.ForNotifier().Info().Int64("chat_id", t.chatID).Int("jobs", len(jobs)).Msg("Telegram summary sent")
	return nil
}

// TelegramMessages renders jobs as HTML-mode messages of at most telegramLimit characters
func TelegramMessages(jobs []crawler.Job) []string {
	lines := []string{fmt.Sprintf("🆕 <b>%d new UN job(s)</b>", len(jobs))}
	for _, s := range GroupByCategory(jobs) {
		lines = append(lines, "", fmt.Sprintf("<b>%s (%d)</b>", html.EscapeString(s.Title), len(s.Jobs)))
		for _, job := range s.Jobs {
			lines = append(lines, fmt.Sprintf("• <a href=\"%s\">%s</a> · %s",
				html.EscapeString(job.URL),
				html.EscapeString(job.Title),
				html.EscapeString(organizationOrUN(job.Organization))))
			if job.Reasoning != "" {
				lines = append(lines, "  <i>"+html.EscapeString(helpers.Truncate(job.Reasoning, reasoningLimit))+"</i>")
			}
		}
	}

	var messages []string
	var cur strings.Builder
	for _, line := range lines {
		if cur.Len() > 0 && cur.Len()+len(line)+1 > telegramLimit {
			messages = append(messages, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	if cur.Len() > 0 {
		messages = append(messages, strings.TrimRight(cur.String(), "\n"))
	}
	return messages
}
