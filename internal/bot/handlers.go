package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/format"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/id"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/ledger"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
)

func (b *Bot) handleStart(ctx context.Context, s *Session, msg *tgbotapi.Message) error {
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}

	welcome := fmt.Sprintf(
		"Welcome to your Onchain Trading Bot!\n"+
			"Your Base address is:\n"+
			"`%s` (Tap to copy)\n"+
			"Select an option below:", acct.Address)
	out := newMarkdownMessage(s.ChatID, welcome)
	out.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(out); err != nil {
		b.logger.Printf("send welcome to chat %d: %v", s.ChatID, err)
	}

	userName := ""
	if msg.From != nil {
		userName = msg.From.UserName
	}
	b.ledger.AddUser(ctx, s.UserID, userName, acct.Address)

	if arg := msg.CommandArguments(); strings.HasPrefix(arg, "ref-") {
		referrer := strings.TrimPrefix(arg, "ref-")
		if b.ledger.AddReferredUser(ctx, s.UserID, userName, acct.Address, referrer) {
			b.reply(s, "Referral successfully recorded.")
		} else {
			b.reply(s, "Failed to record referral.")
		}
	}
	return nil
}

func (b *Bot) handleBalance(ctx context.Context, s *Session) error {
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.NativeBalance(ctx, acct.Address)
	if err != nil {
		return err
	}
	b.reply(s, "Your balances are as follows:")

	lines := make([]string, 0, 4)
	if !balance.IsZero() {
		lines = append(lines, "ETH: "+balance.String())
	}
	entries, lerr := b.ledger.Positions(ctx, acct.Address)
	if lerr != nil {
		b.logger.Printf("balance: positions for %s: %v", acct.Address, lerr)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		addr := strings.ToLower(e.TokenAddress)
		if registry.IsNative(addr) || seen[addr] {
			continue
		}
		seen[addr] = true
		tokenBalance, _, terr := b.chain.TokenBalance(ctx, e.TokenAddress, acct.Address)
		if terr != nil || tokenBalance.IsZero() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.TokenName, tokenBalance))
	}
	if len(lines) == 0 {
		b.reply(s, "No balances.")
		return nil
	}
	b.reply(s, strings.Join(lines, "\n"))
	return nil
}

func (b *Bot) handleDeposit(ctx context.Context, s *Session) error {
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	b.reply(s, "Send your ETH to the following address on Base Mainnet:")
	b.reply(s, acct.Address)
	return nil
}

func (b *Bot) handleReferral(s *Session) error {
	link := fmt.Sprintf("https://t.me/%s?start=ref-%d", b.username, s.UserID)
	b.replyMarkdown(s,
		"🌟 **Referral Program** 🌟\n\n"+
			"Become Velvet Unicorn co-founder - refer new users and earn 50% of their trading fees! 🏆\n\n"+
			"Here is your unique referral link:\n\n"+
			"`"+link+"`\n\n"+
			"Share this link and start earning now!  🚀")
	return nil
}

func (b *Bot) handleExport(ctx context.Context, s *Session) error {
	b.reply(s, "The following contains your private key. Keep it somewhere private and do not share it with anyone.")
	key, err := b.wallets.ExportKey(ctx, s.UserID)
	if err != nil {
		return err
	}
	b.replyMarkdown(s, "`"+key+"`")
	return nil
}

// readAmount parses a typed amount and sends the validation reply itself when
// the input is unusable. A literal zero gets its own message.
func (b *Bot) readAmount(s *Session, text string) (decimal.Decimal, bool) {
	amount, err := id.ParseAmount(text)
	if err != nil {
		if d, derr := decimal.NewFromString(strings.TrimSpace(text)); derr == nil && d.Sign() == 0 {
			b.reply(s, "Please enter a positive amount.")
		} else {
			b.reply(s, "Invalid amount. Please enter a valid number.")
		}
		return decimal.Decimal{}, false
	}
	return amount, true
}

func (b *Bot) startWithdraw(s *Session) error {
	s.Step = StepWithdrawAmount
	b.reply(s, "How much ETH would you like to withdraw?")
	return nil
}

func (b *Bot) setWithdrawAmount(ctx context.Context, s *Session, text string) error {
	amount, ok := b.readAmount(s, text)
	if !ok {
		return nil
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.NativeBalance(ctx, acct.Address)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return boterr.New(boterr.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient balance. Your current ETH balance is %s.", balance))
	}
	s.WithdrawAmount = amount
	s.Step = StepWithdrawAddress
	b.reply(s, "Please enter the Ethereum address to withdraw to:")
	return nil
}

func (b *Bot) setWithdrawAddress(ctx context.Context, s *Session, text string) error {
	dest, err := id.ParseAddress(text)
	if err != nil {
		b.reply(s, "Invalid Ethereum address. Please enter a valid address.")
		return nil
	}
	if !id.IsHexAddress(dest) {
		resolved, rerr := b.chain.Resolve(ctx, dest)
		if rerr != nil {
			b.logger.Printf("withdraw: resolve %s: %v", dest, rerr)
			b.reply(s, "Invalid Ethereum address. Please enter a valid address.")
			return nil
		}
		dest = resolved
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	amount := s.WithdrawAmount
	s.WithdrawAmount = decimal.Decimal{}
	s.Step = StepNone

	b.reply(s, "Waiting for withdrawal to complete...")
	hash, err := b.chain.Transfer(ctx, acct, dest, id.ToBaseUnits(amount, registry.NativeDecimals))
	if err != nil {
		b.reply(s, fmt.Sprintf("Withdrawal failed: %v", err))
		return nil
	}
	b.reply(s, "Withdrawal complete! Transaction link: "+registry.ExplorerTxURL+hash)
	return nil
}

func (b *Bot) startLegacyBuy(s *Session) error {
	s.Step = StepBuyAmount
	b.reply(s, "How much ETH would you like to spend on the buy?")
	return nil
}

func (b *Bot) setLegacyBuyAmount(ctx context.Context, s *Session, text string) error {
	amount, ok := b.readAmount(s, text)
	if !ok {
		return nil
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	balance, _, err := b.chain.NativeBalance(ctx, acct.Address)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return boterr.New(boterr.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient balance. Your current ETH balance is %s.", balance))
	}
	s.BuyAmount = amount
	s.Step = StepBuyAsset
	b.reply(s, "Please enter the asset you'd like to buy (contract address):")
	return nil
}

func (b *Bot) setLegacyBuyAsset(ctx context.Context, s *Session, text string) error {
	if !id.IsHexAddress(text) {
		b.reply(s, "Please provide a valid address.")
		return nil
	}
	amount := s.BuyAmount
	s.BuyAmount = decimal.Decimal{}
	s.Step = StepNone

	b.reply(s, "Executing buy...")
	hash, err := b.marketSwap(ctx, s, registry.NativeSentinel, strings.TrimSpace(text), amount)
	if err != nil {
		b.reply(s, fmt.Sprintf("Buy failed: %v", err))
		return nil
	}
	b.reply(s, "Buy successfully completed! Transaction link: "+registry.ExplorerTxURL+hash)
	return nil
}

func (b *Bot) startLegacySell(s *Session) error {
	s.Step = StepSellAsset
	b.reply(s, "Which asset would you like to sell? (contract address)")
	return nil
}

func (b *Bot) setLegacySellAsset(s *Session, text string) error {
	if !id.IsHexAddress(text) {
		b.reply(s, "Please provide a valid address.")
		return nil
	}
	s.SellAsset = strings.TrimSpace(text)
	s.Step = StepSellAmount
	b.reply(s, fmt.Sprintf("How much %s would you like to sell?", s.SellAsset))
	return nil
}

func (b *Bot) setLegacySellAmount(ctx context.Context, s *Session, text string) error {
	amount, ok := b.readAmount(s, text)
	if !ok {
		return nil
	}
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	asset := s.SellAsset
	balance, _, err := b.chain.TokenBalance(ctx, asset, acct.Address)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return boterr.New(boterr.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient balance. Your current %s balance is %s.", asset, balance))
	}
	s.SellAsset = ""
	s.Step = StepNone

	b.reply(s, "Executing sell...")
	hash, err := b.marketSwap(ctx, s, asset, registry.NativeSentinel, amount)
	if err != nil {
		b.reply(s, fmt.Sprintf("Sell failed: %v", err))
		return nil
	}
	b.reply(s, "Sell successfully completed! Transaction link: "+registry.ExplorerTxURL+hash)
	return nil
}

func (b *Bot) handlePositions(ctx context.Context, s *Session) error {
	b.reply(s, "Fetching your current token positions...")
	acct, err := b.wallets.GetOrCreate(ctx, s.UserID)
	if err != nil {
		return err
	}
	nativeBalance, _, err := b.chain.NativeBalance(ctx, acct.Address)
	if err != nil {
		return err
	}

	entries, err := b.ledger.Positions(ctx, acct.Address)
	if err != nil {
		return err
	}

	addresses := make([]string, 0, len(entries)+1)
	addresses = append(addresses, registry.WrappedNative)
	for _, e := range entries {
		addresses = append(addresses, e.TokenAddress)
	}
	rows := b.oracle.FetchPrices(ctx, addresses)

	nativePrice := decimal.Zero
	if info, ok := oracle.PriceFor(rows, registry.NativeSentinel); ok {
		nativePrice = info.PriceUSD
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Wallet: `%s`\n\n", acct.Address)
	fmt.Fprintf(&sb, "ETH Balance:`%s` ETH ($%s) \n\n",
		nativeBalance, format.Number(nativeBalance.Mul(nativePrice)))

	held := 0
	for _, e := range entries {
		if registry.IsNative(e.TokenAddress) {
			continue
		}
		info, ok := oracle.PriceFor(rows, e.TokenAddress)
		if !ok {
			continue
		}
		balance, _, berr := b.chain.TokenBalance(ctx, e.TokenAddress, acct.Address)
		if berr != nil || balance.IsZero() {
			continue
		}
		held++
		b.writePosition(&sb, e, info, balance)
	}
	if held == 0 {
		b.reply(s, "No current positions found.")
		return nil
	}
	b.replyMarkdown(s, sb.String())
	return nil
}

func (b *Bot) writePosition(sb *strings.Builder, e ledger.Entry, info oracle.TokenInfo, balance decimal.Decimal) {
	entryPrice, err := decimal.NewFromString(e.TokenAmount)
	if err != nil {
		entryPrice = decimal.Zero
	}
	entry := entryPrice.Add(info.PriceUSD).Div(decimal.NewFromInt(2))
	fmt.Fprintf(sb, "%s -[📈](https://www.dextools.io/app/en/base/pair-explorer/%s)**%s ($%s)**\n",
		e.TokenName, e.TokenAddress, balance.Round(6), format.Number(balance.Mul(info.PriceUSD)))
	fmt.Fprintf(sb, "• `%s`\n", e.TokenAddress)
	fmt.Fprintf(sb, "• Price & MC: **$%s** — **$%s** \n", format.Number(info.PriceUSD), format.Number(info.MarketCap))
	fmt.Fprintf(sb, "• Average entry: **$%s** — **$%s**\n", format.Number(entry), format.Number(info.MarketCap))
	fmt.Fprintf(sb, "• Liquidity: $%s\n\n\n", format.Number(info.Liquidity))
}
