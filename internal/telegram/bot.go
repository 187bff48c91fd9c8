package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"irrigation-planner/internal/assistant"
	"irrigation-planner/internal/config"
	"irrigation-planner/internal/metrics"
	"irrigation-planner/internal/plot"
)

const requestTimeout = 90 * time.Second

// Bot wraps the Telegram API and the irrigation assistant.
type Bot struct {
	api          *tgbotapi.BotAPI
	svc          *assistant.Service
	plots        *plot.Repository
	sessions     *SessionRepository
	metricsStore *metrics.Store
	cfg          *config.Config
	dataDir      string
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	svc *assistant.Service,
	plots *plot.Repository,
	sessions *SessionRepository,
	metricsStore *metrics.Store,
	dataDir string,
) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", webhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:          bot,
		svc:          svc,
		plots:        plots,
		sessions:     sessions,
		metricsStore: metricsStore,
		cfg:          cfg,
		dataDir:      dataDir,
	}, nil
}

// RegisterHandlers mounts the webhook endpoint on the echo server.
func (b *Bot) RegisterHandlers(e *echo.Echo) {
	e.POST("/webhook", echo.WrapHandler(http.HandlerFunc(b.handleWebhook)))
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	if !isAllowed(b.cfg.TelegramAllowedUserIDs, update.Message.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

// isAllowed reports whether userID may use the bot. An empty list allows everyone.
func isAllowed(allowed []int64, userID int64) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := msg.From.ID
	switch msg.Command() {
	case "start", "help":
		b.send(msg.Chat.ID, helpText)
	case "metrics":
		b.handleMetricsRequest(msg)
	case "plots":
		b.handlePlots(ctx, msg.Chat.ID, userID)
	case "use":
		b.handleUse(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "plan":
		b.handlePlan(ctx, msg.Chat.ID, userID, false)
	case "refresh":
		b.handlePlan(ctx, msg.Chat.ID, userID, true)
	case "water":
		b.handleWater(ctx, msg.Chat.ID, userID, msg.CommandArguments())
	case "":
		b.handleChat(ctx, msg)
	default:
		b.send(msg.Chat.ID, "Unknown command.\n\n"+helpText)
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		log.Printf("Error fetching metrics: %v", err)
		b.send(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	b.send(msg.Chat.ID, metrics.Report(usage, metrics.GetSysHealth(b.dataDir)))
}

func (b *Bot) handlePlots(ctx context.Context, chatID, userID int64) {
	plots, err := b.plots.List(ctx)
	if err != nil {
		b.sendError(chatID, "listing plots", err)
		return
	}
	active, _ := b.sessions.ActivePlot(ctx, userID)
	b.send(chatID, formatPlotList(plots, active))
}

func (b *Bot) handleUse(ctx context.Context, chatID, userID int64, plotID string) {
	if plotID == "" {
		b.send(chatID, "Usage: /use <plot-id>")
		return
	}
	p, err := b.plots.Get(ctx, plotID)
	if err != nil {
		b.sendError(chatID, "selecting plot", err)
		return
	}
	if err := b.sessions.SetActivePlot(ctx, userID, p.ID); err != nil {
		b.sendError(chatID, "selecting plot", err)
		return
	}
	b.send(chatID, fmt.Sprintf("✅ Now talking about *%s*.", escapeMarkdown(p.Name)))
}

// activePlot loads the user's selected plot, telling the user when there is none.
func (b *Bot) activePlot(ctx context.Context, chatID, userID int64) *plot.Plot {
	plotID, err := b.sessions.ActivePlot(ctx, userID)
	if err != nil {
		b.sendError(chatID, "loading session", err)
		return nil
	}
	if plotID == "" {
		b.send(chatID, "Pick a plot first with /use <plot-id>. See /plots.")
		return nil
	}
	p, err := b.plots.Get(ctx, plotID)
	if err != nil {
		b.sendError(chatID, "loading plot", err)
		return nil
	}
	return p
}

func (b *Bot) handlePlan(ctx context.Context, chatID, userID int64, force bool) {
	p := b.activePlot(ctx, chatID, userID)
	if p == nil {
		return
	}
	s, err := b.svc.GetPlan(ctx, p.ID, force)
	if err != nil {
		b.sendError(chatID, "building the plan", err)
		return
	}
	b.send(chatID, formatScheduleMarkdown(p.Name, s))
}

func (b *Bot) handleWater(ctx context.Context, chatID, userID int64, args string) {
	minutes, err := parseMinutes(args)
	if err != nil {
		b.send(chatID, err.Error())
		return
	}
	p := b.activePlot(ctx, chatID, userID)
	if p == nil {
		return
	}
	l, err := b.svc.WaterNow(ctx, p.ID, minutes, 0)
	if err != nil {
		b.sendError(chatID, "logging watering", err)
		return
	}
	b.send(chatID, fmt.Sprintf("💧 Logged %g minutes (~%gL) on *%s*.", l.DurationMinutes, l.Liters, escapeMarkdown(p.Name)))
}

func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	p := b.activePlot(ctx, msg.Chat.ID, msg.From.ID)
	if p == nil {
		return
	}
	resp, err := b.svc.HandleChat(ctx, assistant.ChatRequest{
		PlotID:    p.ID,
		SessionID: "tg-" + strconv.FormatInt(msg.From.ID, 10),
		Text:      msg.Text,
	})
	if err != nil {
		b.sendError(msg.Chat.ID, "handling your message", err)
		return
	}
	// Replies may contain user text, so they go out as plain text.
	b.deliver(tgbotapi.NewMessage(msg.Chat.ID, formatChatReply(resp)))
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	b.deliver(msg)
}

func (b *Bot) deliver(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to %d: %v", msg.ChatID, err)
	}
}

func (b *Bot) sendError(chatID int64, action string, err error) {
	log.Printf("Error %s: %v", action, err)
	text := "⚠️ Something went wrong. Please try again or rephrase your request."
	if errors.Is(err, plot.ErrPlotNotFound) {
		text = "⚠️ That plot does not exist. See /plots."
	}
	b.deliver(tgbotapi.NewMessage(chatID, text))
}
