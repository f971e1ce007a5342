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

	"github.com/google/uuid"
)

// PremiumService purchases Telegram Premium subscriptions from the reseller
// API. Without a base URL it runs in mock mode and every purchase succeeds.
type PremiumService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPremiumService(baseURL, apiKey string) *PremiumService {
	return &PremiumService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type premiumPurchaseRequest struct {
	TelegramID string `json:"telegram_id"`
	Months     int    `json:"months"`
}

// PurchaseSubscription buys months of Premium for the Telegram account.
func (s *PremiumService) PurchaseSubscription(ctx context.Context, accountID string, months int) (*PurchaseResult, error) {
	if s.baseURL == "" {
		return &PurchaseResult{
			Success:       true,
			TransactionID: "mock-" + uuid.NewString(),
			Message:       fmt.Sprintf("Successfully purchased %d months of Telegram Premium for user %s", months, accountID),
		}, nil
	}

	payload, err := json.Marshal(premiumPurchaseRequest{TelegramID: accountID, Months: months})
	if err != nil {
		return nil, fmt.Errorf("premium request marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/purchases", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("premium request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("premium request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("premium purchase: read body: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("premium purchase: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result PurchaseResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("premium purchase unmarshal: %w", err)
	}
	return &result, nil
}
