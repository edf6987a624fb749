// Package ledger talks to the off-chain bookkeeping service that tracks
// users, referrals, and recorded token entries.
package ledger

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
)

type Client struct {
	http    *httpx.Client
	baseURL string
	logger  *log.Logger
}

func New(httpClient *httpx.Client, baseURL string, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = registry.DefaultLedgerURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Entry is one recorded token position for a wallet.
type Entry struct {
	TokenAddress string `json:"tokenAddress"`
	TokenName    string `json:"tokenName"`
	TokenAmount  string `json:"tokenAmount"`
}

// AddUser registers the user on first contact. Failures are logged and
// swallowed so signup never blocks the chat.
func (c *Client) AddUser(ctx context.Context, userID int64, userName, walletAddress string) {
	payload := map[string]any{
		"userId":        userID,
		"userName":      userName,
		"walletAddress": walletAddress,
	}
	if err := c.post(ctx, "/add-user", payload); err != nil {
		c.logger.Printf("ledger: add user %d: %v", userID, err)
	}
}

// AddReferredUser records a referral link. Returns false when the service
// rejected or could not be reached, so the caller can tell the user.
func (c *Client) AddReferredUser(ctx context.Context, userID int64, userName, walletAddress, referrer string) bool {
	payload := map[string]any{
		"userId":        userID,
		"userName":      userName,
		"walletAddress": walletAddress,
		"referralUser":  referrer,
	}
	if err := c.post(ctx, "/add-referred-user", payload); err != nil {
		c.logger.Printf("ledger: add referred user %d: %v", userID, err)
		return false
	}
	return true
}

// RecordToken stores a bought token with its entry price. Best effort.
func (c *Client) RecordToken(ctx context.Context, walletAddress, tokenName, tokenAddress, entryPrice string) {
	payload := map[string]any{
		"walletAddress": strings.ToLower(walletAddress),
		"tokenName":     tokenName,
		"tokenAddress":  tokenAddress,
		"tokenAmount":   entryPrice,
	}
	if err := c.post(ctx, "/add-token", payload); err != nil {
		c.logger.Printf("ledger: record token %s for %s: %v", tokenAddress, walletAddress, err)
	}
}

// Positions lists the wallet's recorded tokens.
func (c *Client) Positions(ctx context.Context, walletAddress string) ([]Entry, error) {
	q := url.Values{}
	q.Set("walletAddress", strings.ToLower(walletAddress))
	var resp struct {
		Tokens []Entry `json:"tokens"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, c.baseURL+"/get-token?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return boterr.Wrap(boterr.CodeInternal, "marshal ledger payload", err)
	}
	_, err = httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+path, body, nil, nil)
	return err
}
