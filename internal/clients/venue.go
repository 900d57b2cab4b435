package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/perpdash/internal/domain"
)

const requestTimeout = 10 * time.Second

// VenueClient is the REST collaborator: wallet-based token issuance and
// the open-positions/open-orders bootstrap fetches.
type VenueClient struct {
	baseURL string
	http    *http.Client
	wallet  *Wallet

	mu    sync.RWMutex
	token string
}

// NewVenueClient creates a REST client for the venue API.
func NewVenueClient(baseURL string, wallet *Wallet) *VenueClient {
	return &VenueClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		wallet:  wallet,
	}
}

// Token returns the current bearer token, empty before the first
// successful Authenticate.
func (c *VenueClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticate exchanges a wallet signature for a fresh bearer token.
// The token is cached for subsequent bootstrap calls.
func (c *VenueClient) Authenticate(ctx context.Context) (string, error) {
	now := time.Now()
	signature, err := c.wallet.SignAuthMessage(now)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"address":   c.wallet.Address(),
		"timestamp": now.UnixMilli(),
		"signature": signature,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal auth payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", strings.NewReader(string(payload)))
	if err != nil {
		return "", errors.Wrap(err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "auth request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Errorf("auth failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reply struct {
		Token string `json:"jwt_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", errors.Wrap(err, "decode auth reply")
	}
	if reply.Token == "" {
		return "", errors.New("auth reply carries no token")
	}

	c.mu.Lock()
	c.token = reply.Token
	c.mu.Unlock()

	return reply.Token, nil
}

// OpenPositions fetches the account's currently open positions.
func (c *VenueClient) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position
	if err := c.getList(ctx, "/positions?status=OPEN", &positions); err != nil {
		return nil, errors.Wrap(err, "fetch open positions")
	}
	return positions, nil
}

// OpenOrders fetches the account's currently open orders.
func (c *VenueClient) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.getList(ctx, "/orders?status=OPEN", &orders); err != nil {
		return nil, errors.Wrap(err, "fetch open orders")
	}
	return orders, nil
}

func (c *VenueClient) getList(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if err := json.Unmarshal(envelope.Results, out); err != nil {
		return errors.Wrap(err, "decode results")
	}
	return nil
}
