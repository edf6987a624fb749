package bot

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/format"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/id"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/solver"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/wallet"
)

const defaultSlippage = "5"

const sellTokenPrompt = "Enter the token you want to sell (contract address):"
const buyTokenPrompt = "Enter the token you want to buy (contract address):"

// startTrade begins the full flow where the user picks both legs.
func (b *Bot) startTrade(s *Session) error {
	s.Trade = TradeState{}
	s.Step = StepTradeSellToken
	b.reply(s, sellTokenPrompt)
	return nil
}

// startBuyFlow is the Buy button: the sell leg is fixed to native ETH and the
// user only picks what to buy.
func (b *Bot) startBuyFlow(s *Session) error {
	s.Trade = TradeState{SellToken: registry.NativeSentinel}
	s.Step = StepTradeBuyToken
	b.reply(s, buyTokenPrompt)
	return nil
}

// startSellFlow is the Sell button: the buy leg is fixed to native ETH and the
// user only picks what to sell.
func (b *Bot) startSellFlow(s *Session) error {
	s.Trade = TradeState{BuyToken: registry.NativeSentinel}
	s.Step = StepTradeSellTokenAuto
	b.reply(s, sellTokenPrompt)
	return nil
}

func (b *Bot) setTradeSellToken(ctx context.Context, s *Session, text string) error {
	token, ok := b.readToken(s, text)
	if !ok {
		return nil
	}
	s.Trade.SellToken = token
	s.Step = StepTradeBuyToken
	b.reply(s, buyTokenPrompt)
	return nil
}

func (b *Bot) setTradeBuyToken(ctx context.Context, s *Session, text string) error {
	token, ok := b.readToken(s, text)
	if !ok {
		return nil
	}
	s.Trade.BuyToken = token
	s.Trade.Slippage = defaultSlippage
	s.Step = StepNone
	return b.showTradeCard(ctx, s, true)
}

func (b *Bot) setTradeSellTokenAuto(ctx context.Context, s *Session, text string) error {
	token, ok := b.readToken(s, text)
	if !ok {
		return nil
	}
	s.Trade.SellToken = token
	s.Trade.Slippage = defaultSlippage
	s.Step = StepNone
	return b.showTradeCard(ctx, s, false)
}

// readToken validates a token address typed in chat. The native sentinel is
// accepted alongside real contracts.
func (b *Bot) readToken(s *Session, text string) (string, bool) {
	v := strings.TrimSpace(text)
	if !id.IsHexAddress(v) && !registry.IsNative(v) {
		b.reply(s, "Please provide a valid address.")
		return "", false
	}
	return v, true
}

// showTradeCard shows the sell-leg balance and buy-leg market data with the
// amount and slippage keyboard.
func (b *Bot) showTradeCard(ctx context.Context, s *Session, buying bool) error {
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.TokenBalance(ctx, s.Trade.SellToken, acct.Address)
	if err != nil {
		return err
	}
	sellInfo, buyInfo, err := b.tradeLegs(ctx, s.Trade.SellToken, s.Trade.BuyToken)
	if err != nil {
		return err
	}
	s.Trade.SellLeg = &sellInfo
	s.Trade.BuyLeg = &buyInfo

	title := "💼 *Sell* \n\n"
	if buying {
		title = fmt.Sprintf("💼 *Trade %s* - (Token) \n\n", buyInfo.Symbol)
	}
	card := title +
		fmt.Sprintf("📊 Balance: `%s` *%s* \n\n", balance, sellInfo.Symbol) +
		fmt.Sprintf("💰 Price: *%s* - LIQ: *%s* - MC: *%s*\n",
			format.Number(buyInfo.PriceUSD), format.Number(buyInfo.Liquidity), format.Number(buyInfo.MarketCap))

	msg := newMarkdownMessage(s.ChatID, card)
	msg.ReplyMarkup = amountKeyboard(sellInfo.Symbol, registry.IsNative(s.Trade.SellToken))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send trade card to chat %d: %v", s.ChatID, err)
	}
	return nil
}

// tradeLegs fetches market data for both legs in one query.
func (b *Bot) tradeLegs(ctx context.Context, sellToken, buyToken string) (oracle.TokenInfo, oracle.TokenInfo, error) {
	rows := b.oracle.FetchPrices(ctx, []string{sellToken, buyToken})
	sellInfo, okSell := oracle.PriceFor(rows, sellToken)
	buyInfo, okBuy := oracle.PriceFor(rows, buyToken)
	if !okSell || !okBuy {
		return oracle.TokenInfo{}, oracle.TokenInfo{}, boterr.New(boterr.CodeUnavailable, "market data unavailable for trade legs")
	}
	return sellInfo, buyInfo, nil
}

// selectPercentAmount sets the trade amount to a share of the live sell-leg
// balance. 100 percent uses the raw balance so nothing is left behind.
func (b *Bot) selectPercentAmount(ctx context.Context, s *Session, pct string) error {
	if s.Trade.SellToken == "" || s.Trade.BuyToken == "" {
		return boterr.New(boterr.CodeInvalidInput, "no trade in progress")
	}
	pctDec, err := id.ParsePercent(pct)
	if err != nil {
		return err
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, raw, err := b.chain.TokenBalance(ctx, s.Trade.SellToken, acct.Address)
	if err != nil {
		return err
	}
	decimals, err := b.chain.Decimals(ctx, s.Trade.SellToken)
	if err != nil {
		return err
	}
	amount := id.FromBaseUnits(id.PercentOf(raw, pctDec), decimals)
	s.Trade.Amount = amount
	s.Trade.AmountSet = true

	b.replyMarkdown(s, fmt.Sprintf("💼 *%s%% of %s *\n\n*Selected amount to trade*: `%s`\n\n", pct, balance, amount))
	return b.runQuote(ctx, s)
}

// selectFixedAmount sets the trade amount to one of the preset native values.
func (b *Bot) selectFixedAmount(ctx context.Context, s *Session, value string) error {
	if s.Trade.SellToken == "" || s.Trade.BuyToken == "" {
		return boterr.New(boterr.CodeInvalidInput, "no trade in progress")
	}
	amount, err := id.ParseAmount(value)
	if err != nil {
		return err
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.TokenBalance(ctx, s.Trade.SellToken, acct.Address)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return boterr.New(boterr.CodeInsufficientBalance, "Not enough balance to execute trade.")
	}
	s.Trade.Amount = amount
	s.Trade.AmountSet = true

	b.replyMarkdown(s, fmt.Sprintf("*Selected amount to trade *: `%s`\n\n", amount))
	return b.runQuote(ctx, s)
}

func (b *Bot) promptFreeAmount(s *Session) error {
	s.Step = StepTradeAmountEntry
	b.reply(s, "Please enter the amount you wish to trade:")
	return nil
}

func (b *Bot) setFreeAmount(ctx context.Context, s *Session, text string) error {
	amount, ok := b.readAmount(s, text)
	if !ok {
		return nil
	}
	s.Trade.Amount = amount
	s.Trade.AmountSet = true
	s.Step = StepNone

	b.replyMarkdown(s, fmt.Sprintf("*Selected amount to trade*: `%s`\n\n", amount))
	return b.runQuote(ctx, s)
}

func (b *Bot) promptFreeSlippage(s *Session) error {
	s.Step = StepSlippageEntry
	b.reply(s, "Please enter the slippage value:")
	return nil
}

func (b *Bot) setFreeSlippage(s *Session, text string) error {
	v := strings.TrimSpace(text)
	if _, err := id.ParsePercent(v); err != nil {
		b.reply(s, "Please enter a valid number for slippage.")
		return nil
	}
	s.Step = StepNone
	return b.setSlippage(s, v)
}

func (b *Bot) setSlippage(s *Session, value string) error {
	s.Trade.Slippage = value
	b.reply(s, "Slippage set: "+value)
	return nil
}

// runQuote validates the assembled trade, ensures spender allowance for
// ERC-20 sell legs, fetches the best route, and asks for confirmation. On a
// solver failure the trade state is kept so Retry can rerun this step.
func (b *Bot) runQuote(ctx context.Context, s *Session) error {
	t := &s.Trade
	if t.SellToken == "" || t.BuyToken == "" || !t.AmountSet {
		return boterr.New(boterr.CodeInvalidInput, "no trade in progress")
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.TokenBalance(ctx, t.SellToken, acct.Address)
	if err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		b.reply(s, "Please enter a positive amount.")
		return nil
	}
	if t.Amount.GreaterThan(balance) {
		return boterr.New(boterr.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient balance. Your current %s balance is %s.", t.SellToken, balance))
	}

	sellInfo, buyInfo, err := b.tradeLegs(ctx, t.SellToken, t.BuyToken)
	if err != nil {
		return err
	}
	t.SellLeg = &sellInfo
	t.BuyLeg = &buyInfo

	sellDecimals, err := b.chain.Decimals(ctx, t.SellToken)
	if err != nil {
		return err
	}
	converted := id.ToBaseUnits(t.Amount, sellDecimals)

	if !registry.IsNative(t.SellToken) {
		if err := b.ensureAllowance(ctx, s, acct, t.SellToken, converted); err != nil {
			return err
		}
	}

	b.reply(s, "Fetching the quote…")
	slippage := t.Slippage
	if slippage == "" {
		slippage = defaultSlippage
	}
	quote, err := b.solver.BestQuote(ctx, solver.QuoteRequest{
		Slippage: slippage,
		Amount:   converted.String(),
		TokenIn:  strings.ToLower(t.SellToken),
		TokenOut: strings.ToLower(t.BuyToken),
		Sender:   acct.Address,
		Receiver: acct.Address,
	})
	if err != nil {
		b.logger.Printf("quote for user %d: %v", s.UserID, err)
		msg := newMessage(s.ChatID, "Fail to fetch routes please retry")
		msg.ReplyMarkup = retryKeyboard()
		if _, serr := b.api.Send(msg); serr != nil {
			b.logger.Printf("send retry prompt to chat %d: %v", s.ChatID, serr)
		}
		return nil
	}
	t.Quote = &quote

	buyDecimals, err := b.chain.Decimals(ctx, t.BuyToken)
	if err != nil {
		return err
	}
	amountOut, ok := new(big.Int).SetString(quote.AmountOut, 10)
	if !ok {
		return boterr.New(boterr.CodeQuoteUnavailable, "quote amountOut is not an integer")
	}
	received := id.FromBaseUnits(amountOut, buyDecimals)
	impact := priceImpact(sellInfo.PriceUSD, t.Amount, buyInfo.PriceUSD, received)

	details := fmt.Sprintf("Details $%s — $%s 📈 · 🔍\n", sellInfo.Symbol, buyInfo.Symbol) +
		fmt.Sprintf("Token address: %s\n", sellInfo.Address) +
		fmt.Sprintf("Balance: %s (%s)\n", balance, sellInfo.Symbol) +
		legLine(sellInfo) +
		changeLine(sellInfo) +
		fmt.Sprintf("Token address: %s\n", buyInfo.Address) +
		legLine(buyInfo) +
		changeLine(buyInfo) +
		"🟢 Fetched Quote (Velvet)\n" +
		fmt.Sprintf("($%s) ↔️  ($%s)\n\n", sellInfo.PriceUSD.Mul(t.Amount).Round(2), buyInfo.PriceUSD.Mul(received).Round(2)) +
		fmt.Sprintf("Price Impact: %s", format.Percent(impact))

	msg := newMessage(s.ChatID, details)
	msg.ReplyMarkup = confirmKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send confirmation to chat %d: %v", s.ChatID, err)
	}
	return nil
}

// ensureAllowance approves the solver spender when the current allowance does
// not cover the trade. An existing sufficient allowance sends no transaction.
func (b *Bot) ensureAllowance(ctx context.Context, s *Session, acct wallet.Account, token string, amount *big.Int) error {
	allowance, err := b.chain.Allowance(ctx, token, acct.Address, registry.SolverSpender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		b.reply(s, "Approval already exists, no need for new approval.")
		return nil
	}
	b.reply(s, "Processing token approval…")
	hash, err := b.chain.Approve(ctx, acct, token, registry.SolverSpender, amount)
	if err != nil {
		b.reply(s, fmt.Sprintf("Approval failed: %v", err))
		return nil
	}
	b.reply(s, "Successfully approved! Transaction hash: "+hash)
	return nil
}

// executeTrade broadcasts the confirmed quote. Trade state is cleared no
// matter how the broadcast ends.
func (b *Bot) executeTrade(ctx context.Context, s *Session) error {
	t := s.Trade
	s.ClearTrade()
	if t.Quote == nil {
		b.reply(s, "An error occurred during the trade: no quote available.")
		return nil
	}
	b.reply(s, "Executing the transaction…")
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	hash, err := b.chain.ExecuteQuote(ctx, acct, t.Quote.To, t.Quote.Data, t.Quote.Value, gasOf(t.Quote))
	if err != nil {
		b.reply(s, fmt.Sprintf("An error occurred during the trade: %v", err))
		return nil
	}
	if t.BuyLeg != nil {
		b.ledger.RecordToken(ctx, strings.ToLower(acct.Address), t.BuyLeg.Symbol, strings.ToLower(t.BuyToken), t.BuyLeg.PriceUSD.String())
	}
	b.reply(s, "Transaction completed with hash: \n"+registry.ExplorerTxURL+hash)
	return nil
}

// cancelTrade drops the pending trade and returns to the main menu.
func (b *Bot) cancelTrade(ctx context.Context, s *Session) error {
	s.ClearTrade()
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	welcome := fmt.Sprintf(
		"Welcome to your Onchain Trading Bot!\n"+
			"Your Base address is:\n"+
			"`%s` (Tap to copy)\n"+
			"Select an option below:", acct.Address)
	msg := newMarkdownMessage(s.ChatID, welcome)
	msg.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send menu to chat %d: %v", s.ChatID, err)
	}
	return nil
}

// marketSwap runs an immediate swap at default slippage for the classic /buy
// and /sell commands.
func (b *Bot) marketSwap(ctx context.Context, s *Session, sellToken, buyToken string, amount decimal.Decimal) (string, error) {
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return "", err
	}
	decimals, err := b.chain.Decimals(ctx, sellToken)
	if err != nil {
		return "", err
	}
	converted := id.ToBaseUnits(amount, decimals)
	if !registry.IsNative(sellToken) {
		allowance, aerr := b.chain.Allowance(ctx, sellToken, acct.Address, registry.SolverSpender)
		if aerr != nil {
			return "", aerr
		}
		if allowance.Cmp(converted) < 0 {
			if _, aerr := b.chain.Approve(ctx, acct, sellToken, registry.SolverSpender, converted); aerr != nil {
				return "", aerr
			}
		}
	}
	quote, err := b.solver.BestQuote(ctx, solver.QuoteRequest{
		Slippage: defaultSlippage,
		Amount:   converted.String(),
		TokenIn:  strings.ToLower(sellToken),
		TokenOut: strings.ToLower(buyToken),
		Sender:   acct.Address,
		Receiver: acct.Address,
	})
	if err != nil {
		return "", err
	}
	return b.chain.ExecuteQuote(ctx, acct, quote.To, quote.Data, quote.Value, gasOf(&quote))
}

// priceImpact is the relative difference between the USD value received and
// the USD value sold. Zero when the sell side has no value to compare.
func priceImpact(sellPrice, sellAmount, buyPrice, buyAmount decimal.Decimal) decimal.Decimal {
	sold := sellPrice.Mul(sellAmount)
	if sold.IsZero() {
		return decimal.Zero
	}
	return buyPrice.Mul(buyAmount).Div(sold).Sub(decimal.NewFromInt(1))
}

func gasOf(q *solver.Quote) uint64 {
	if n, err := q.GasEstimate.Int64(); err == nil && n >= 0 {
		return uint64(n)
	}
	if f, err := q.GasEstimate.Float64(); err == nil && f >= 0 {
		return uint64(f)
	}
	return 0
}

func legLine(info oracle.TokenInfo) string {
	return fmt.Sprintf("Price: $%s — LIQ: $%s — MC: $%s\n\n",
		format.Number(info.PriceUSD), format.Number(info.Liquidity), format.Number(info.MarketCap))
}

func changeLine(info oracle.TokenInfo) string {
	return fmt.Sprintf("1h: %s — 24h: %s\n\n", signedChange(info.Change1h), signedChange(info.Change24h))
}

// signedChange renders a raw percent figure with an explicit sign and six
// decimal places.
func signedChange(v decimal.Decimal) string {
	sign := "-"
	if v.IsPositive() {
		sign = "+"
	}
	return sign + v.Abs().StringFixed(6) + "%"
}
