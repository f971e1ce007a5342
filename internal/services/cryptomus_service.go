package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Cryptomus payment statuses that matter to order processing.
var (
	cryptomusPaidStatuses   = map[string]bool{"paid": true, "paid_over": true}
	cryptomusFailedStatuses = map[string]bool{
		"fail": true, "cancel": true, "system_fail": true, "wrong_amount": true, "refund_paid": true,
	}
)

// CryptomusService talks to the Cryptomus merchant API.
type CryptomusService struct {
	baseURL    string
	merchantID string
	apiKey     string
	client     *http.Client
}

func NewCryptomusService(baseURL, merchantID, apiKey string) *CryptomusService {
	return &CryptomusService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Sign computes md5(base64(body) + api key) as a hex string.
func (s *CryptomusService) Sign(body []byte) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + s.apiKey))
	return hex.EncodeToString(sum[:])
}

func (s *CryptomusService) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cryptomus marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cryptomus request build: %w", err)
	}
	req.Header.Set("merchant", s.merchantID)
	req.Header.Set("sign", s.Sign(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptomus request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cryptomus %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cryptomus %s: status %d, body: %s", path, resp.StatusCode, string(respBody))
	}
	if state := gjson.GetBytes(respBody, "state"); state.Exists() && state.Int() != 0 {
		return nil, fmt.Errorf("cryptomus %s: state %d, message: %s", path, state.Int(), gjson.GetBytes(respBody, "message").String())
	}
	return respBody, nil
}

// CreateSession opens an invoice for the order and returns its checkout URL.
func (s *CryptomusService) CreateSession(ctx context.Context, r SessionRequest) (*GatewaySession, error) {
	body, err := s.post(ctx, "/payment", map[string]any{
		"amount":              r.Amount.StringFixed(2),
		"currency":            r.Currency,
		"order_id":            r.OrderID,
		"description":         r.Description,
		"url_callback":        r.CallbackURL,
		"is_payment_multiple": false,
	})
	if err != nil {
		return nil, err
	}

	checkoutURL := gjson.GetBytes(body, "result.url").String()
	if checkoutURL == "" {
		return nil, errors.New("cryptomus payment: response has no checkout url")
	}
	return &GatewaySession{
		SessionID:   gjson.GetBytes(body, "result.uuid").String(),
		CheckoutURL: checkoutURL,
		Raw:         body,
	}, nil
}

// GetStatus fetches the payment status of an order.
func (s *CryptomusService) GetStatus(ctx context.Context, orderID string) (*GatewayStatus, error) {
	body, err := s.post(ctx, "/payment/info", map[string]any{"order_id": orderID})
	if err != nil {
		return nil, err
	}
	return &GatewayStatus{
		OrderID:       orderID,
		Status:        firstString(body, "result.payment_status", "result.status"),
		TransactionID: gjson.GetBytes(body, "result.uuid").String(),
		Raw:           body,
	}, nil
}

// VerifyNotification validates the sign field of a callback. The signature
// covers the body as sent with its sign member removed, so members keep the
// gateway's order and encoding.
func (s *CryptomusService) VerifyNotification(body []byte) (*GatewayStatus, error) {
	sign := gjson.GetBytes(body, "sign").String()
	if sign == "" {
		return nil, ErrInvalidSignature.With("missing sign")
	}

	unsigned, err := stripSign(body)
	if err != nil {
		return nil, ErrValidation.With("malformed notification").Wrap(err)
	}
	expected := s.Sign(unsigned)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) != 1 {
		return nil, ErrInvalidSignature
	}

	return &GatewayStatus{
		OrderID:       gjson.GetBytes(body, "order_id").String(),
		Status:        firstString(body, "status", "payment_status"),
		TransactionID: gjson.GetBytes(body, "uuid").String(),
		Raw:           body,
	}, nil
}

// stripSign rebuilds the top-level object from the raw text of its members,
// leaving out sign.
func stripSign(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errors.New("notification is not an object")
	}

	var out bytes.Buffer
	out.WriteByte('{')
	first := true
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "sign" {
			return true
		}
		if !first {
			out.WriteByte(',')
		}
		first = false
		out.WriteString(key.Raw)
		out.WriteByte(':')
		out.WriteString(value.Raw)
		return true
	})
	out.WriteByte('}')
	return out.Bytes(), nil
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// IsPaidStatus reports whether a gateway status means the invoice is paid.
func IsPaidStatus(status string) bool {
	return cryptomusPaidStatuses[status]
}

// IsFailedStatus reports whether a gateway status is a terminal failure.
func IsFailedStatus(status string) bool {
	return cryptomusFailedStatuses[status]
}
