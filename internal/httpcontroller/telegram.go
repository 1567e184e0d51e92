package httpcontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

const telegramAPIBase = "https://api.telegram.org"

var urlPattern = regexp.MustCompile(`https?://\S+`)

type telegramUpdate struct {
	Message struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Entities []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"entities"`
	} `json:"message"`
}

// handleTelegramWebhook accepts Telegram updates. A message containing a
// link is processed asynchronously and the result sent back to the chat;
// the webhook itself always answers quickly so Telegram does not retry.
func (s *Server) handleTelegramWebhook(c echo.Context) error {
	cfg := s.Settings.Bot.Telegram
	if !cfg.Enabled {
		return echo.NewHTTPError(http.StatusNotFound, "bot disabled")
	}
	if cfg.WebhookSecret != "" &&
		c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token") != cfg.WebhookSecret {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
	}

	var update telegramUpdate
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	if chatID == 0 || text == "" {
		return c.NoContent(http.StatusOK)
	}

	switch {
	case strings.HasPrefix(text, "/stats"):
		go s.replyStats(chatID)
	case strings.HasPrefix(text, "/last"):
		go s.replyLast(chatID)
	default:
		url := extractURL(update)
		if url == "" {
			go s.sendMessage(chatID, "Send me a post link and I will find the songs in it.")
			break
		}
		go s.processAndReply(chatID, url)
	}
	return c.NoContent(http.StatusOK)
}

func extractURL(update telegramUpdate) string {
	for _, ent := range update.Message.Entities {
		if ent.Type == "text_link" && ent.URL != "" {
			return ent.URL
		}
	}
	return urlPattern.FindString(update.Message.Text)
}

func (s *Server) processAndReply(chatID int64, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	outcome, err := s.pipeline.Process(ctx, url, entry.ChannelBot)
	if err != nil {
		logger.Error("telegram processing failed", "url", url, "error", err)
		s.sendMessage(chatID, "Sorry, I could not process that link.")
		return
	}
	if outcome.Entry.Status == entry.StatusError {
		s.sendMessage(chatID, "Sorry, I could not process that link: "+outcome.Entry.Error)
		return
	}
	s.sendMessage(chatID, s.renderEntryReply(ctx, outcome.Entry))
}

func (s *Server) replyStats(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := s.store.CountEntries(ctx)
	if err != nil {
		logger.Error("stats lookup failed", "error", err)
		s.sendMessage(chatID, "Stats are unavailable right now.")
		return
	}
	s.sendMessage(chatID, fmt.Sprintf("%d entries processed so far.", total))
}

func (s *Server) replyLast(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := s.store.ListEntries(ctx, 1, 0)
	if err != nil || len(entries) == 0 {
		s.sendMessage(chatID, "Nothing processed yet.")
		return
	}
	s.sendMessage(chatID, s.renderEntryReply(ctx, &entries[0]))
}

func (s *Server) renderEntryReply(ctx context.Context, e *entry.Entry) string {
	text, err := s.loader.Render(ctx, prompts.BotResponse, map[string]any{
		"Name":    s.Settings.Main.Name,
		"Songs":   e.Results.Songs,
		"Films":   e.Results.Films,
		"Summary": e.Results.Summary,
	})
	if err != nil {
		logger.Error("failed to render bot response", "error", err)
		return "Done. Check the entry for details."
	}
	return strings.TrimSpace(text)
}

// sendMessage posts a text message to a chat via the bot API.
func (s *Server) sendMessage(chatID int64, text string) {
	cfg := s.Settings.Bot.Telegram
	if cfg.BotToken == "" || text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.telegramBase(), cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		logger.Error("telegram send failed", "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		logger.Error("telegram send rejected", "status", resp.StatusCode)
	}
}

func (s *Server) telegramBase() string {
	if s.telegramBaseURL != "" {
		return s.telegramBaseURL
	}
	return telegramAPIBase
}
