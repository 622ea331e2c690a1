// Package telegram exposes the planner and clipper over a Telegram webhook.
package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-scheduler/internal/clipper"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
)

// PlanGenerator produces a meal plan from a free-text query.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, rawQuery string) (*planner.MealPlanResponse, error)
}

// Bot wraps the Telegram API, the planner and the clipper.
type Bot struct {
	api           *tgbotapi.BotAPI
	planner       PlanGenerator
	clipper       *clipper.Clipper
	metricsStore  *metrics.Store
	allowedUserID int64
}

// NewBot initializes the Telegram bot and registers the webhook.
func NewBot(token, webhookURL string, allowedUserID int64, p PlanGenerator, c *clipper.Clipper, store *metrics.Store) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL %s: %w", webhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:           bot,
		planner:       p,
		clipper:       c,
		metricsStore:  store,
		allowedUserID: allowedUserID,
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	if b.allowedUserID != 0 && update.Message.From.ID != b.allowedUserID {
		log.Printf("Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	if msg.Text == "/metrics" {
		b.handleMetricsCommand(msg.Chat.ID)
		return
	}

	if strings.HasPrefix(msg.Text, "http://") || strings.HasPrefix(msg.Text, "https://") {
		b.handleClipperRequest(msg)
		return
	}

	b.handlePlannerRequest(msg)
}

func (b *Bot) handleClipperRequest(msg *tgbotapi.Message) {
	sentMsg, err := b.sendStatus(msg.Chat.ID, "✂️ *Clipping recipe...*")
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	r, err := b.clipper.ClipURL(ctx, msg.Text)
	var finalText string
	if err != nil {
		log.Printf("Error clipping recipe: %v", err)
		finalText = fmt.Sprintf("❌ *Error clipping recipe:*\n```\n%v\n```", sanitize(err))
	} else {
		finalText = fmt.Sprintf("✅ *Recipe Saved!*\n\n*Title:* %s\n*Prep time:* %d mins", r.Title, r.ReadyInMinutes)
	}
	b.editStatus(msg.Chat.ID, sentMsg.MessageID, finalText)
}

func (b *Bot) handlePlannerRequest(msg *tgbotapi.Message) {
	sentMsg, err := b.sendStatus(msg.Chat.ID, "🧑‍🍳 *Thinking...* \n(Scoring recipes and assembling your plan)")
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Printf("Generating plan for request: %s", msg.Text)
	plan, err := b.planner.GeneratePlan(ctx, msg.Text)
	if err != nil {
		log.Printf("Error generating plan: %v", err)
		b.editStatus(msg.Chat.ID, sentMsg.MessageID, fmt.Sprintf("❌ *Error generating plan:*\n```\n%v\n```", sanitize(err)))
		return
	}

	b.editStatus(msg.Chat.ID, sentMsg.MessageID, formatPlanMarkdown(plan))
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, "❌ Error fetching metrics."))
		return
	}

	health := metrics.GetSysHealth("data")

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d calls)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = "Markdown"
	b.api.Send(msg)
}

func (b *Bot) sendStatus(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Failed to send status message: %v", err)
	}
	return sent, err
}

func (b *Bot) editStatus(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	b.api.Send(edit)
}

func formatPlanMarkdown(plan *planner.MealPlanResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Meal Plan* (%d days)\n", plan.DurationDays))
	if plan.ClarifiedIntent != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", plan.ClarifiedIntent))
	}
	sb.WriteString("\n")

	for _, day := range plan.MealPlan {
		sb.WriteString(fmt.Sprintf("*Day %d* (%s)\n", day.Day, day.Date))
		for _, meal := range day.Meals {
			sb.WriteString(fmt.Sprintf("• *%s*: %s (%s, %d kcal)\n",
				meal.MealType, meal.RecipeName, meal.PreparationTime, meal.NutritionalInfo.Calories))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("🍽 Meals: %d | ⏱ Avg prep: %s | 💰 Est: %s\n",
		plan.Summary.TotalMeals, plan.Summary.AvgPrepTime, plan.Summary.EstimatedCost))

	for _, w := range plan.Summary.Warnings {
		sb.WriteString(fmt.Sprintf("⚠️ _%s_\n", w))
	}
	return sb.String()
}

func sanitize(err error) string {
	return strings.ReplaceAll(err.Error(), "`", "'")
}
