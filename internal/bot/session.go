// Package bot implements the Telegram chat surface: the command and button
// dispatcher and the multi-turn trade conversation.
package bot

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/solver"
)

// Step is the single active conversation step. Free-text messages are routed
// by the session's current step; exactly one step is active at a time.
type Step int

const (
	StepNone Step = iota
	StepTradeSellToken
	StepTradeSellTokenAuto
	StepTradeBuyToken
	StepTradeAmountEntry
	StepSlippageEntry
	StepWithdrawAmount
	StepWithdrawAddress
	StepBuyAmount
	StepBuyAsset
	StepSellAsset
	StepSellAmount
)

// TradeState is the pending swap being assembled across messages.
type TradeState struct {
	SellToken string
	BuyToken  string
	Amount    decimal.Decimal
	AmountSet bool
	Slippage  string
	Quote     *solver.Quote
	BuyLeg    *oracle.TokenInfo
	SellLeg   *oracle.TokenInfo
}

// Session is one user's conversation state. The embedded mutex serializes
// update handling per chat; sessions interleave freely across users.
type Session struct {
	mu sync.Mutex

	UserID int64
	ChatID int64
	Step   Step

	Trade          TradeState
	WithdrawAmount decimal.Decimal
	BuyAmount      decimal.Decimal
	SellAsset      string
}

// ClearTrade drops every trade-flow field and the active step. Called on
// completion, cancellation, and broadcast failure alike.
func (s *Session) ClearTrade() {
	s.Trade = TradeState{}
	s.Step = StepNone
}

// Sessions is the in-memory per-user session registry.
type Sessions struct {
	mu   sync.Mutex
	byID map[int64]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[int64]*Session)}
}

// Get returns the user's session, creating it on first contact.
func (r *Sessions) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[userID]
	if !ok {
		s = &Session{UserID: userID}
		r.byID[userID] = s
	}
	return s
}
