package bot

import (
	"context"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/chain"
	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/insights"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/ledger"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/solver"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/wallet"
)

const genericErrorReply = "An error occurred. Please try again later."

// sender is the slice of the Telegram API the bot uses; the real client and
// the test fake both satisfy it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot ties the chat surface to the wallet, chain, and market services.
type Bot struct {
	api      sender
	username string
	wallets  *wallet.Directory
	chain    *chain.Client
	oracle   *oracle.Client
	solver   *solver.Client
	ledger   *ledger.Client
	insights *insights.Service
	sessions *Sessions
	logger   *log.Logger
}

type Deps struct {
	API      sender
	Username string
	Wallets  *wallet.Directory
	Chain    *chain.Client
	Oracle   *oracle.Client
	Solver   *solver.Client
	Ledger   *ledger.Client
	Insights *insights.Service
	Logger   *log.Logger
}

func New(deps Deps) *Bot {
	return &Bot{
		api:      deps.API,
		username: deps.Username,
		wallets:  deps.Wallets,
		chain:    deps.Chain,
		oracle:   deps.Oracle,
		solver:   deps.Solver,
		ledger:   deps.Ledger,
		insights: deps.Insights,
		sessions: NewSessions(),
		logger:   deps.Logger,
	}
}

// HandleUpdate processes one inbound update. The session lock serializes
// handling per user; any handler error collapses to a generic reply so the
// conversation never hangs.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, ok := updateOrigin(update)
	if !ok {
		return
	}
	session := b.sessions.Get(userID)
	session.mu.Lock()
	defer session.mu.Unlock()
	session.ChatID = chatID

	var err error
	switch {
	case update.CallbackQuery != nil:
		b.ackCallback(update.CallbackQuery)
		err = b.handleCallback(ctx, session, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		err = b.handleCommand(ctx, session, update.Message)
	case update.Message != nil:
		err = b.handleText(ctx, session, update.Message.Text)
	}
	if err != nil {
		if be, ok := boterr.As(err); ok && be.Code == boterr.CodeInsufficientBalance {
			b.reply(session, be.Message)
			return
		}
		b.logger.Printf("handle update for user %d: %v", userID, err)
		b.reply(session, genericErrorReply)
	}
}

// ackCallback answers the callback query so the client stops showing the
// button spinner. Failures only affect the spinner and are logged.
func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Printf("answer callback %s: %v", cb.ID, err)
	}
}

func updateOrigin(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.From.ID, update.CallbackQuery.Message.Chat.ID, true
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.Chat.ID, true
	}
	return 0, 0, false
}

func (b *Bot) handleCommand(ctx context.Context, s *Session, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, s, msg)
	case "buy":
		return b.startLegacyBuy(s)
	case "sell":
		return b.startLegacySell(s)
	case "balance":
		return b.handleBalance(ctx, s)
	case "trade":
		return b.startTrade(s)
	case "positions":
		return b.handlePositions(ctx, s)
	case "deposit":
		return b.handleDeposit(ctx, s)
	case "withdraw":
		return b.startWithdraw(s)
	case "referral":
		return b.handleReferral(s)
	case "export":
		return b.handleExport(ctx, s)
	default:
		b.reply(s, "Unknown command.")
		return nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, s *Session, cb *tgbotapi.CallbackQuery) error {
	switch cb.Data {
	case "check_balance":
		return b.handleBalance(ctx, s)
	case "referral":
		return b.handleReferral(s)
	case "trade":
		return b.startTrade(s)
	case "25_amount", "50_amount", "75_amount", "100_amount":
		pct := strings.TrimSuffix(cb.Data, "_amount")
		return b.selectPercentAmount(ctx, s, pct)
	case "0.05_amount", "0.1_amount", "0.3_amount", "0.5_amount":
		fixed := strings.TrimSuffix(cb.Data, "_amount")
		return b.selectFixedAmount(ctx, s, fixed)
	case "1_slippage", "2_slippage", "3_slippage", "5_slippage":
		return b.setSlippage(s, strings.TrimSuffix(cb.Data, "_slippage"))
	case "x_amount":
		return b.promptFreeAmount(s)
	case "x_slippage":
		return b.promptFreeSlippage(s)
	case "deposit_eth":
		return b.handleDeposit(ctx, s)
	case "withdraw_eth":
		return b.startWithdraw(s)
	case "export_key":
		return b.handleExport(ctx, s)
	case "my_position":
		return b.handlePositions(ctx, s)
	case "trade_yes":
		return b.executeTrade(ctx, s)
	case "trade_no":
		return b.cancelTrade(ctx, s)
	case "trade_token_buy":
		return b.startSellFlow(s)
	case "trade_token_sell":
		return b.startBuyFlow(s)
	case "trade_token_amount_click":
		return b.runQuote(ctx, s)
	default:
		b.reply(s, "You selected "+cb.Data)
		return nil
	}
}

// handleText routes free text by the session's current step. With no step
// active the message is treated as a crypto question.
func (b *Bot) handleText(ctx context.Context, s *Session, text string) error {
	text = strings.TrimSpace(text)
	switch s.Step {
	case StepWithdrawAmount:
		return b.setWithdrawAmount(ctx, s, text)
	case StepWithdrawAddress:
		return b.setWithdrawAddress(ctx, s, text)
	case StepBuyAmount:
		return b.setLegacyBuyAmount(ctx, s, text)
	case StepBuyAsset:
		return b.setLegacyBuyAsset(ctx, s, text)
	case StepSellAsset:
		return b.setLegacySellAsset(s, text)
	case StepSellAmount:
		return b.setLegacySellAmount(ctx, s, text)
	case StepTradeSellToken:
		return b.setTradeSellToken(ctx, s, text)
	case StepTradeSellTokenAuto:
		return b.setTradeSellTokenAuto(ctx, s, text)
	case StepTradeBuyToken:
		return b.setTradeBuyToken(ctx, s, text)
	case StepTradeAmountEntry:
		return b.setFreeAmount(ctx, s, text)
	case StepSlippageEntry:
		return b.setFreeSlippage(s, text)
	default:
		return b.answerQuestion(ctx, s, text)
	}
}

func (b *Bot) answerQuestion(ctx context.Context, s *Session, text string) error {
	if b.insights == nil || text == "" {
		b.reply(s, "Select an option from the menu, or use /start.")
		return nil
	}
	answer, err := b.insights.Answer(ctx, text)
	if err != nil {
		b.logger.Printf("answer question for user %d: %v", s.UserID, err)
		b.reply(s, "I could not look that up right now. Please try again later.")
		return nil
	}
	b.reply(s, answer)
	return nil
}

func newMessage(chatID int64, text string) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(chatID, text)
}

func newMarkdownMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func (b *Bot) reply(s *Session, text string) {
	msg := tgbotapi.NewMessage(s.ChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send reply to chat %d: %v", s.ChatID, err)
	}
}

func (b *Bot) replyMarkdown(s *Session, text string) {
	msg := tgbotapi.NewMessage(s.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Printf("send reply to chat %d: %v", s.ChatID, err)
	}
}
