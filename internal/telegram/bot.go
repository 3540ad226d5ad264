// Package telegram exposes the recipe book through a personal Telegram
// bot: send a photo to import a recipe, a URL to clip one, and commands
// to inspect the meal plan and grocery list.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"recipe-book/internal/app"
	"recipe-book/internal/config"
)

// Bot wraps the Telegram API and the application.
type Bot struct {
	api    *tgbotapi.BotAPI
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger
}

// NewBot initializes the Telegram bot.
func NewBot(cfg *config.Config, application *app.App, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("account", api.Self.UserName))
	return &Bot{api: api, app: application, cfg: cfg, logger: logger}, nil
}

// Run long-polls for updates until the context is cancelled. A personal
// bot has no public endpoint, so polling beats a webhook here.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			if !b.allowed(update.Message.From.ID) {
				b.logger.Warn("unauthorized access attempt",
					zap.Int64("user_id", update.Message.From.ID),
					zap.String("username", update.Message.From.UserName))
				continue
			}
			go b.processMessage(update.Message)
		}
	}
}

func (b *Bot) allowed(userID int64) bool {
	for _, id := range b.cfg.TelegramAllowedIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	if len(msg.Photo) > 0 {
		b.handlePhoto(msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "http://"), strings.HasPrefix(text, "https://"):
		b.handleClip(msg)
	case text == "/grocery":
		b.reply(msg.Chat.ID, b.groceryMessage())
	case text == "/plan":
		b.reply(msg.Chat.ID, b.planMessage())
	case text == "/clear":
		b.handleClear(msg)
	case text == "/usage":
		b.handleUsage(msg)
	default:
		b.reply(msg.Chat.ID, "Send me a recipe *photo* or a recipe *URL* to import it.\n\nCommands:\n/plan — planned recipes\n/grocery — grocery list\n/clear — clear the meal plan\n/usage — AI usage report")
	}
}

func (b *Bot) handlePhoto(msg *tgbotapi.Message) {
	statusID := b.reply(msg.Chat.ID, "📷 *Reading recipe...* \n(This can take a few tries)")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// The last PhotoSize is the largest rendition.
	image, err := b.downloadPhoto(msg.Photo[len(msg.Photo)-1].FileID)
	if err != nil {
		b.edit(msg.Chat.ID, statusID, errorMessage("downloading the photo failed", err))
		return
	}

	_, ext, err := b.app.ImportPhoto(ctx, image)
	if err != nil {
		b.edit(msg.Chat.ID, statusID, errorMessage("extraction failed", err))
		return
	}
	b.edit(msg.Chat.ID, statusID, fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s\n*Ingredients:* %d\n*Steps:* %d",
		ext.Title, len(ext.Ingredients), len(ext.Instructions)))
}

func (b *Bot) handleClip(msg *tgbotapi.Message) {
	statusID := b.reply(msg.Chat.ID, "✂️ *Clipping recipe...*")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, ext, err := b.app.ImportURL(ctx, msg.Text)
	if err != nil {
		b.edit(msg.Chat.ID, statusID, errorMessage("clipping failed", err))
		return
	}
	b.edit(msg.Chat.ID, statusID, fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s", ext.Title))
}

func (b *Bot) handleClear(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := b.app.ClearPlan(ctx); err != nil {
		b.reply(msg.Chat.ID, errorMessage("clearing the plan failed", err))
		return
	}
	b.reply(msg.Chat.ID, "🗑 *Meal plan cleared.*")
}

func (b *Bot) handleUsage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	usage, err := b.app.Usage(ctx, 7)
	if err != nil {
		b.reply(msg.Chat.ID, errorMessage("fetching usage failed", err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 *AI Usage (7 days)*\n\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens, %d runs (%d failed)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalRuns, d.FailedRuns))
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) groceryMessage() string {
	list := b.app.GroceryList()
	if list.NothingToBuy {
		return "🛒 Nothing to buy — plan some recipes first, or everything is checked off."
	}
	return "🛒\n```\n" + list.Text + "```"
}

func (b *Bot) planMessage() string {
	state := b.app.Library()
	if len(state.PlannedIDs) == 0 {
		return "📅 The meal plan is empty."
	}

	titles := map[string]string{}
	for _, r := range state.Recipes {
		titles[r.ID] = r.Title
	}

	var sb strings.Builder
	sb.WriteString("📅 *Meal Plan*\n\n")
	for _, id := range state.PlannedIDs {
		title, ok := titles[id]
		if !ok {
			// Deleted recipes leave dangling plan entries.
			continue
		}
		sb.WriteString("• " + title + "\n")
	}
	return sb.String()
}

func errorMessage(what string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error, %s:*\n```\n%s\n```", what, safeErr)
}

func (b *Bot) downloadPhoto(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download photo: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// reply sends a Markdown message and returns its id for later edits.
func (b *Bot) reply(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Warn("failed to send telegram message", zap.Error(err))
		return 0
	}
	return sent.MessageID
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit telegram message", zap.Error(err))
	}
}
