package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// TelegramService sends bot messages through the Telegram Bot API.
type TelegramService struct {
	botToken string
	apiURL   string
	client   *http.Client
	log      *logrus.Entry
}

// NewTelegramService creates a new TelegramService. apiURL defaults to the
// public Bot API endpoint.
func NewTelegramService(botToken, apiURL string, log *logrus.Logger) *TelegramService {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &TelegramService{
		botToken: botToken,
		apiURL:   strings.TrimRight(apiURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.WithField("component", "telegram"),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID and reports the API's ok flag.
// A rejected chat yields ok=false with a nil error; transport failures are
// returned as errors.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) (bool, error) {
	if s.botToken == "" {
		s.log.Warn("bot token not configured")
		return false, nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Error("failed to send message")
		return false, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("telegram sendMessage: read body: %w", err)
	}
	ok := gjson.GetBytes(respBody, "ok").Bool()
	if resp.StatusCode != http.StatusOK || !ok {
		s.log.WithFields(logrus.Fields{
			"status":      resp.StatusCode,
			"description": gjson.GetBytes(respBody, "description").String(),
		}).Warn("message rejected")
		return false, nil
	}
	return true, nil
}

// FormatPrice formats price with currency and thousand separators.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}

	var result strings.Builder
	length := len(whole)
	for i, digit := range whole {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return sign + result.String() + "." + frac + " " + currency
}
