package insights

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
)

// LunarCrush reads social market data used as grounding context for answers.
type LunarCrush struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	logger  *log.Logger
}

func NewLunarCrush(httpClient *httpx.Client, baseURL, apiKey string, logger *log.Logger) *LunarCrush {
	return &LunarCrush{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, logger: logger}
}

// SocialToken is one coin row from the coins list endpoint.
type SocialToken struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Volume24h       float64 `json:"volume_24h"`
	PercentChange1h float64 `json:"percent_change_1h"`
	PercentChange24 float64 `json:"percent_change_24h"`
	MarketCap       float64 `json:"market_cap"`
	GalaxyScore     float64 `json:"galaxy_score"`
	AltRank         int     `json:"alt_rank"`
	Sentiment       float64 `json:"sentiment"`
}

// Post is one social post headline about a token.
type Post struct {
	Title string `json:"post_title"`
}

// CoreTokens fetches the ranked coin list. Failures degrade to nil so the
// answering path keeps working without social context.
func (l *LunarCrush) CoreTokens(ctx context.Context) []SocialToken {
	var resp struct {
		Data []SocialToken `json:"data"`
	}
	if err := l.get(ctx, "/coins/list/v1", &resp); err != nil {
		l.logger.Printf("lunarcrush: core tokens: %v", err)
		return nil
	}
	return resp.Data
}

// TokenPosts fetches recent social post titles for a ticker.
func (l *LunarCrush) TokenPosts(ctx context.Context, symbol string) []Post {
	var resp struct {
		Data []Post `json:"data"`
	}
	path := fmt.Sprintf("/topic/%s/posts/v1", strings.ToLower(symbol))
	if err := l.get(ctx, path, &resp); err != nil {
		l.logger.Printf("lunarcrush: posts for %s: %v", symbol, err)
		return nil
	}
	return resp.Data
}

// Summary renders a token row as a single prompt-ready line.
func (t SocialToken) Summary() string {
	return fmt.Sprintf(
		"Symbol: $%s, Name: %s, Price: %g, Volume (24h): %g, Percent Change (1h): %g, Percent Change (24h): %g, Market Cap: %g, Galaxy Score: %g, Alt Rank: %d, Sentiment: %g",
		t.Symbol, t.Name, t.Price, t.Volume24h, t.PercentChange1h, t.PercentChange24, t.MarketCap, t.GalaxyScore, t.AltRank, t.Sentiment,
	)
}

func (l *LunarCrush) get(ctx context.Context, path string, out any) error {
	var headers map[string]string
	if l.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + l.apiKey}
	}
	_, err := httpx.DoBodyJSON(ctx, l.http, http.MethodGet, l.baseURL+path, nil, headers, out)
	return err
}
