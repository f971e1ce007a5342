package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/foxyhub/internal/logging"
)

func TestTelegramSendMessage(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.ChatID == "blocked" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	svc := NewTelegramService("TOKEN", srv.URL, logging.Discard())

	ok, err := svc.SendMessage(context.Background(), "42", "<b>hi</b>")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)

	ok, err = svc.SendMessage(context.Background(), "blocked", "hi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTelegramWithoutToken(t *testing.T) {
	ok, err := NewTelegramService("", "", logging.Discard()).SendMessage(context.Background(), "42", "hi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTelegramTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewTelegramService("TOKEN", url, logging.Discard()).SendMessage(context.Background(), "42", "hi")
	assert.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1,234,567.50 USD", FormatPrice(decimal.RequireFromString("1234567.5"), ""))
	assert.Equal(t, "25.00 USDT", FormatPrice(decimal.NewFromInt(25), "USDT"))
	assert.Equal(t, "-1,000.00 USD", FormatPrice(decimal.NewFromInt(-1000), "USD"))
	assert.Equal(t, "999.99 USD", FormatPrice(decimal.RequireFromString("999.99"), "USD"))
}

func TestTelegramTruncatedResponse(t *testing.T) {
	srv := truncatedServer(t, `{"ok":tr`)

	ok, err := NewTelegramService("TOKEN", srv.URL, logging.Discard()).SendMessage(context.Background(), "42", "hi")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "read body")
}
