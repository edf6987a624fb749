// Package solver requests swap routes from the metasolver quote service.
package solver

import (
	"context"
	"encoding/json"
	"net/http"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = registry.DefaultSolverURL
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

// QuoteRequest describes the swap to route. Amount is in base units of the
// sell token, slippage is a percentage string like "5".
type QuoteRequest struct {
	Slippage string
	Amount   string
	TokenIn  string
	TokenOut string
	Sender   string
	Receiver string
}

// Quote is one executable route returned by the solver.
type Quote struct {
	To          string      `json:"to"`
	Data        string      `json:"data"`
	Value       string      `json:"value"`
	AmountOut   string      `json:"amountOut"`
	GasEstimate json.Number `json:"gasEstimate"`
}

type quoteRequestBody struct {
	Slippage       string `json:"slippage"`
	Amount         string `json:"amount"`
	TokenIn        string `json:"tokenIn"`
	TokenOut       string `json:"tokenOut"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	ChainID        int64  `json:"chainId"`
	SkipSimulation bool   `json:"skipSimulation"`
}

type quoteResponse struct {
	Quotes []Quote `json:"quotes"`
}

// BestQuote returns the solver's top route for the swap. An empty quote list
// or transport failure maps to a quote-unavailable error.
func (c *Client) BestQuote(ctx context.Context, q QuoteRequest) (Quote, error) {
	body, err := json.Marshal(quoteRequestBody{
		Slippage:       q.Slippage,
		Amount:         q.Amount,
		TokenIn:        q.TokenIn,
		TokenOut:       q.TokenOut,
		Sender:         q.Sender,
		Receiver:       q.Receiver,
		ChainID:        registry.ChainID,
		SkipSimulation: false,
	})
	if err != nil {
		return Quote{}, boterr.Wrap(boterr.CodeInternal, "marshal quote request", err)
	}

	var resp quoteResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL, body, nil, &resp); err != nil {
		return Quote{}, boterr.Wrap(boterr.CodeQuoteUnavailable, "fetch routes", err)
	}
	if len(resp.Quotes) == 0 {
		return Quote{}, boterr.New(boterr.CodeQuoteUnavailable, "solver returned no routes")
	}
	return resp.Quotes[0], nil
}
