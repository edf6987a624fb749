// Package oracle fetches market data from the Codex GraphQL API.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
)

const queryLimit = 200

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	logger  *log.Logger
}

func New(httpClient *httpx.Client, baseURL, apiKey string, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = registry.DefaultOracleURL
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

// TokenInfo is one row of market data for a token.
type TokenInfo struct {
	Address   string
	Symbol    string
	Name      string
	Decimals  int
	PriceUSD  decimal.Decimal
	MarketCap decimal.Decimal
	Liquidity decimal.Decimal
	Holders   int64
	Change1h  decimal.Decimal
	Change24h decimal.Decimal
}

type filterTokensResponse struct {
	Data struct {
		FilterTokens struct {
			Results []struct {
				Token struct {
					Address  string `json:"address"`
					Decimals int    `json:"decimals"`
					Name     string `json:"name"`
					Symbol   string `json:"symbol"`
				} `json:"token"`
				MarketCap string      `json:"marketCap"`
				Holders   int64       `json:"holders"`
				PriceUSD  json.Number `json:"priceUSD"`
				Liquidity string      `json:"liquidity"`
				Change1   json.Number `json:"change1"`
				Change24  json.Number `json:"change24"`
			} `json:"results"`
		} `json:"filterTokens"`
	} `json:"data"`
}

// FetchPrices looks up market data for the given token addresses on Base.
// The native sentinel is translated to the wrapped-native contract before the
// query. Failures degrade to an empty result so callers keep working without
// prices.
func (c *Client) FetchPrices(ctx context.Context, addresses []string) []TokenInfo {
	if len(addresses) == 0 {
		return nil
	}
	inputs := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		lookup := registry.PriceLookupAddress(addr)
		inputs = append(inputs, fmt.Sprintf("%q", fmt.Sprintf("%s:%d", lookup, registry.ChainID)))
	}

	query := fmt.Sprintf(`query {
  filterTokens(
    tokens: [%s],
    limit: %d
  ) {
    results {
      token {
        address
        decimals
        name
        networkId
        symbol
      }
      marketCap
      holders
      priceUSD
      liquidity
      change1
      change24
      createdAt
    }
  }
}`, strings.Join(inputs, "\n"), queryLimit)

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		c.logger.Printf("oracle: marshal query: %v", err)
		return []TokenInfo{}
	}
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": c.apiKey}
	}

	var resp filterTokensResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL, body, headers, &resp); err != nil {
		c.logger.Printf("oracle: fetch prices: %v", err)
		return []TokenInfo{}
	}

	results := resp.Data.FilterTokens.Results
	out := make([]TokenInfo, 0, len(results))
	for _, r := range results {
		out = append(out, TokenInfo{
			Address:   r.Token.Address,
			Symbol:    r.Token.Symbol,
			Name:      r.Token.Name,
			Decimals:  r.Token.Decimals,
			PriceUSD:  parseDecimal(string(r.PriceUSD)),
			MarketCap: parseDecimal(r.MarketCap),
			Liquidity: parseDecimal(r.Liquidity),
			Holders:   r.Holders,
			Change1h:  parseDecimal(string(r.Change1)),
			Change24h: parseDecimal(string(r.Change24)),
		})
	}
	return out
}

// PriceFor returns the market row matching addr, translating the native
// sentinel the same way the query did.
func PriceFor(rows []TokenInfo, addr string) (TokenInfo, bool) {
	lookup := registry.PriceLookupAddress(addr)
	for _, row := range rows {
		if registry.SameAddress(row.Address, lookup) {
			return row, true
		}
	}
	return TokenInfo{}, false
}

func parseDecimal(s string) decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
