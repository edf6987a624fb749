package bot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/chain"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/ledger"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/solver"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/wallet"
)

const (
	testUserID   int64 = 7
	testChatID   int64 = 7
	testBuyToken       = "0x1111111111111111111111111111111111111111"
)

type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	acks []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.acks = append(f.acks, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeAPI) contains(sub string) bool {
	for _, t := range f.texts() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

// fakeChainBackend answers ERC-20 reads by selector and records broadcast
// transactions. Receipts are always immediately available.
type fakeChainBackend struct {
	nativeBalance *big.Int
	tokenBalance  *big.Int
	allowance     *big.Int
	resolved      common.Address
	sendErr       error
	sent          []*types.Transaction
}

func (f *fakeChainBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.nativeBalance, nil
}

func (f *fakeChainBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}
	switch hex.EncodeToString(call.Data[:4]) {
	case "313ce567": // decimals()
		return common.LeftPadBytes(big.NewInt(18).Bytes(), 32), nil
	case "70a08231": // balanceOf(address)
		return common.LeftPadBytes(f.tokenBalance.Bytes(), 32), nil
	case "dd62ed3e": // allowance(address,address)
		return common.LeftPadBytes(f.allowance.Bytes(), 32), nil
	case "3b3b57de": // addr(bytes32), name resolver
		return common.LeftPadBytes(f.resolved.Bytes(), 32), nil
	}
	return nil, fmt.Errorf("unexpected call %x", call.Data[:4])
}

func (f *fakeChainBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChainBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeChainBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChainBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type env struct {
	bot          *Bot
	api          *fakeAPI
	backend      *fakeChainBackend
	solverFail   bool
	mu           sync.Mutex
	ledgerHits   map[string]int
	ledgerTokens []map[string]any
}

func (e *env) hit(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledgerHits[path]++
}

func (e *env) hits(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledgerHits[path]
}

func oracleRows() map[string]any {
	row := func(addr, symbol, price string) map[string]any {
		return map[string]any{
			"token": map[string]any{
				"address":  addr,
				"decimals": 18,
				"name":     symbol,
				"symbol":   symbol,
			},
			"marketCap": "1000000",
			"holders":   100,
			"priceUSD":  json.RawMessage(price),
			"liquidity": "500000",
			"change1":   json.RawMessage(`0.5`),
			"change24":  json.RawMessage(`-1.25`),
		}
	}
	return map[string]any{
		"data": map[string]any{
			"filterTokens": map[string]any{
				"results": []any{
					row(registry.WrappedNative, "WETH", "4000"),
					row(testBuyToken, "TOK", "2"),
				},
			},
		},
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		api: &fakeAPI{},
		backend: &fakeChainBackend{
			nativeBalance: big.NewInt(0).Mul(big.NewInt(25), big.NewInt(1e17)), // 2.5 ETH
			tokenBalance:  big.NewInt(0).Mul(big.NewInt(1000), big.NewInt(1e18)),
			allowance:     big.NewInt(0),
		},
		ledgerHits: make(map[string]int),
	}

	oracleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(oracleRows())
	}))
	t.Cleanup(oracleSrv.Close)

	solverSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.solverFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"quotes": []any{map[string]any{
				"to":          registry.SolverSpender,
				"data":        "0x",
				"value":       "0",
				"amountOut":   "5000000000000000000000", // 5000 TOK
				"gasEstimate": 500000,
			}},
		})
	}))
	t.Cleanup(solverSrv.Close)

	ledgerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hit(r.URL.Path)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		e.mu.Lock()
		tokens := e.ledgerTokens
		e.mu.Unlock()
		if tokens == nil {
			tokens = []map[string]any{}
		}
		json.NewEncoder(w).Encode(map[string]any{"tokens": tokens})
	}))
	t.Cleanup(ledgerSrv.Close)

	logger := log.New(io.Discard, "", 0)
	vault, err := wallet.NewVault(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	dir := t.TempDir()
	store, err := wallet.OpenStore(filepath.Join(dir, "wallets.db"), filepath.Join(dir, "wallets.lock"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	httpClient := httpx.New(2*time.Second, 0)
	e.bot = New(Deps{
		API:      e.api,
		Username: "velvetbot",
		Wallets:  wallet.NewDirectory(vault, store, logger),
		Chain:    chain.NewWithBackend(e.backend),
		Oracle:   oracle.New(httpClient, oracleSrv.URL, "test-key", logger),
		Solver:   solver.New(httpClient, solverSrv.URL),
		Ledger:   ledger.New(httpClient, ledgerSrv.URL, logger),
		Logger:   logger,
	})
	return e
}

func commandUpdate(text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.Index(text, " "); i > 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		From:     &tgbotapi.User{ID: testUserID, UserName: "alice"},
		Chat:     &tgbotapi.Chat{ID: testChatID},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: testUserID, UserName: "alice"},
		Chat: &tgbotapi.Chat{ID: testChatID},
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
		Data:    data,
	}}
}

func TestStartCreatesWalletAndShowsMenu(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.bot.HandleUpdate(ctx, commandUpdate("/start"))

	addr, err := e.bot.wallets.Lookup(ctx, testUserID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if addr == "" {
		t.Fatal("expected a wallet to be created on /start")
	}
	if !e.api.contains(addr) {
		t.Fatal("welcome message must show the wallet address")
	}
	if !e.api.contains("Welcome to your Onchain Trading Bot!") {
		t.Fatalf("missing welcome text, got %v", e.api.texts())
	}
	e.api.mu.Lock()
	first := e.api.sent[0]
	e.api.mu.Unlock()
	if first.ReplyMarkup == nil {
		t.Fatal("welcome message must carry the main menu keyboard")
	}
	if e.hits("/add-user") != 1 {
		t.Fatalf("expected one signup call, got %d", e.hits("/add-user"))
	}
}

func TestStartRecordsReferral(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), commandUpdate("/start ref-42"))

	if e.hits("/add-referred-user") != 1 {
		t.Fatalf("expected one referral call, got %d", e.hits("/add-referred-user"))
	}
	if !e.api.contains("Referral successfully recorded.") {
		t.Fatalf("missing referral confirmation, got %v", e.api.texts())
	}
}

func TestSecondStartReusesWallet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.bot.HandleUpdate(ctx, commandUpdate("/start"))
	first, _ := e.bot.wallets.Lookup(ctx, testUserID)
	e.bot.HandleUpdate(ctx, commandUpdate("/start"))
	second, _ := e.bot.wallets.Lookup(ctx, testUserID)

	if first == "" || first != second {
		t.Fatalf("wallet must be stable across starts: %q vs %q", first, second)
	}
}

func TestReferralLinkEmbedsUserID(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), callbackUpdate("referral"))
	if !e.api.contains(fmt.Sprintf("https://t.me/velvetbot?start=ref-%d", testUserID)) {
		t.Fatalf("missing referral link, got %v", e.api.texts())
	}
}

func TestDepositShowsAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.bot.HandleUpdate(ctx, callbackUpdate("deposit_eth"))

	addr, _ := e.bot.wallets.Lookup(ctx, testUserID)
	if !e.api.contains("Send your ETH to the following address on Base Mainnet:") {
		t.Fatalf("missing deposit prompt, got %v", e.api.texts())
	}
	if !e.api.contains(addr) {
		t.Fatal("deposit reply must include the wallet address")
	}
}

func TestExportKeyRoundTrips(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.bot.HandleUpdate(ctx, commandUpdate("/start"))
	e.api.reset()

	e.bot.HandleUpdate(ctx, callbackUpdate("export_key"))
	if !e.api.contains("The following contains your private key.") {
		t.Fatalf("missing export warning, got %v", e.api.texts())
	}
	key, err := e.bot.wallets.ExportKey(ctx, testUserID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !e.api.contains(key) {
		t.Fatal("export reply must include the key")
	}
}

func TestWithdrawValidatesAmountAndAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.bot.HandleUpdate(ctx, callbackUpdate("withdraw_eth"))
	if !e.api.contains("How much ETH would you like to withdraw?") {
		t.Fatalf("missing withdraw prompt, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("abc"))
	if !e.api.contains("Invalid amount. Please enter a valid number.") {
		t.Fatalf("garbage amount not rejected, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("0"))
	if !e.api.contains("Please enter a positive amount.") {
		t.Fatalf("zero amount not rejected, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("9999"))
	if !e.api.contains("Insufficient balance. Your current ETH balance is 2.5.") {
		t.Fatalf("over-balance amount not rejected, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("1.5"))
	if !e.api.contains("Please enter the Ethereum address to withdraw to:") {
		t.Fatalf("valid amount not accepted, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("not-an-address"))
	if !e.api.contains("Invalid Ethereum address. Please enter a valid address.") {
		t.Fatalf("bad address not rejected, got %v", e.api.texts())
	}

	e.bot.HandleUpdate(ctx, textUpdate("0x2222222222222222222222222222222222222222"))
	if len(e.backend.sent) != 1 {
		t.Fatalf("expected one transfer tx, got %d", len(e.backend.sent))
	}
	if got := e.backend.sent[0].Gas(); got != 21000 {
		t.Fatalf("transfer gas limit %d", got)
	}
	if !e.api.contains("Withdrawal complete! Transaction link: " + registry.ExplorerTxURL) {
		t.Fatalf("missing completion message, got %v", e.api.texts())
	}

	s := e.bot.sessions.Get(testUserID)
	if s.Step != StepNone {
		t.Fatalf("withdraw flow must clear its step, got %v", s.Step)
	}
}

func TestFreeTextWithoutStepSuggestsMenu(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), textUpdate("gm"))
	if !e.api.contains("Select an option from the menu, or use /start.") {
		t.Fatalf("unexpected replies: %v", e.api.texts())
	}
}

func TestWithdrawResolvesNamedDestination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.bot.HandleUpdate(ctx, callbackUpdate("withdraw_eth"))
	e.bot.HandleUpdate(ctx, textUpdate("1.5"))

	e.bot.HandleUpdate(ctx, textUpdate("ghost.base.eth"))
	if !e.api.contains("Invalid Ethereum address. Please enter a valid address.") {
		t.Fatalf("unresolvable name not rejected, got %v", e.api.texts())
	}
	if len(e.backend.sent) != 0 {
		t.Fatal("no transfer may be sent for an unresolvable name")
	}
	if s := e.bot.sessions.Get(testUserID); s.Step != StepWithdrawAddress {
		t.Fatalf("rejection must keep the address step, got %v", s.Step)
	}

	target := common.HexToAddress("0x3333333333333333333333333333333333333333")
	e.backend.resolved = target
	e.bot.HandleUpdate(ctx, textUpdate("alice.base.eth"))
	if len(e.backend.sent) != 1 {
		t.Fatalf("expected one transfer tx, got %d", len(e.backend.sent))
	}
	if to := e.backend.sent[0].To(); to == nil || *to != target {
		t.Fatalf("transfer sent to %v, want %s", to, target.Hex())
	}
	if !e.api.contains("Withdrawal complete! Transaction link: " + registry.ExplorerTxURL) {
		t.Fatalf("missing completion message, got %v", e.api.texts())
	}
}

func TestBalanceListsTokenHoldings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.bot.HandleUpdate(ctx, commandUpdate("/start"))
	e.api.reset()

	e.mu.Lock()
	e.ledgerTokens = []map[string]any{
		{"tokenAddress": testBuyToken, "tokenName": "TOK", "tokenAmount": "2"},
		{"tokenAddress": testBuyToken, "tokenName": "TOK", "tokenAmount": "2"},
	}
	e.mu.Unlock()

	e.bot.HandleUpdate(ctx, callbackUpdate("check_balance"))
	if !e.api.contains("Your balances are as follows:") {
		t.Fatalf("missing balances header, got %v", e.api.texts())
	}
	if !e.api.contains("ETH: 2.5\nTOK: 1000") {
		t.Fatalf("balances must list every held token once, got %v", e.api.texts())
	}
}

func TestBalanceEmptyWallet(t *testing.T) {
	e := newEnv(t)
	e.backend.nativeBalance = big.NewInt(0)
	e.bot.HandleUpdate(context.Background(), callbackUpdate("check_balance"))
	if !e.api.contains("No balances.") {
		t.Fatalf("empty wallet must report no balances, got %v", e.api.texts())
	}
}

func TestCallbackQueriesAcknowledged(t *testing.T) {
	e := newEnv(t)
	e.bot.HandleUpdate(context.Background(), callbackUpdate("check_balance"))
	if e.api.ackCount() != 1 {
		t.Fatalf("expected one callback answer, got %d", e.api.ackCount())
	}
	if e.api.acks[0] != "cb-check_balance" {
		t.Fatalf("answered wrong callback id %q", e.api.acks[0])
	}
}
