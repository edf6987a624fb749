// Package chain wraps the Base RPC endpoint: balances, ERC-20 reads,
// approvals, and transaction broadcast.
package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/id"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/wallet"
)

const (
	approveGasLimit  = 200_000
	transferGasLimit = 21_000
	swapGasFallback  = 18_000_000

	receiptPollInterval = 2 * time.Second
	receiptTimeout      = 2 * time.Minute
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const resolverABIJSON = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var (
	erc20ABI    = mustParseABI(erc20ABIJSON)
	resolverABI = mustParseABI(resolverABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// Backend is the subset of the RPC client the bot uses.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Client struct {
	backend Backend
}

// Dial connects to the RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeUnavailable, "connect rpc", err)
	}
	return &Client{backend: eth}, nil
}

// NewWithBackend wires an existing backend, used by tests.
func NewWithBackend(backend Backend) *Client {
	return &Client{backend: backend}
}

// NativeBalance returns the ETH balance in human units plus raw wei.
func (c *Client) NativeBalance(ctx context.Context, owner string) (decimal.Decimal, *big.Int, error) {
	raw, err := c.backend.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return decimal.Zero, nil, boterr.Wrap(boterr.CodeUnavailable, "read native balance", err)
	}
	return id.FromBaseUnits(raw, registry.NativeDecimals), raw, nil
}

// TokenBalance returns an ERC-20 balance in human units plus raw base units.
// The native sentinel routes to NativeBalance.
func (c *Client) TokenBalance(ctx context.Context, token, owner string) (decimal.Decimal, *big.Int, error) {
	if registry.IsNative(token) {
		return c.NativeBalance(ctx, owner)
	}
	raw, err := c.callUint(ctx, token, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return decimal.Zero, nil, err
	}
	decimals, err := c.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return id.FromBaseUnits(raw, decimals), raw, nil
}

// Decimals reads the token's decimals, fixed at 18 for the native sentinel.
func (c *Client) Decimals(ctx context.Context, token string) (int, error) {
	if registry.IsNative(token) {
		return registry.NativeDecimals, nil
	}
	v, err := c.callUint(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Symbol reads the token's ticker, "ETH" for the native sentinel.
func (c *Client) Symbol(ctx context.Context, token string) (string, error) {
	if registry.IsNative(token) {
		return "ETH", nil
	}
	data, err := erc20ABI.Pack("symbol")
	if err != nil {
		return "", boterr.Wrap(boterr.CodeInternal, "pack symbol call", err)
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return "", err
	}
	var symbol string
	if err := erc20ABI.UnpackIntoInterface(&symbol, "symbol", out); err != nil {
		return "", boterr.Wrap(boterr.CodeUnavailable, "decode symbol", err)
	}
	return symbol, nil
}

// Resolve looks up the address behind a name.eth or name.base.eth style
// destination via the Basenames resolver. Unregistered names resolve to the
// zero address and are rejected.
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	data, err := resolverABI.Pack("addr", nameHash(name))
	if err != nil {
		return "", boterr.Wrap(boterr.CodeInternal, "pack addr call", err)
	}
	out, err := c.call(ctx, registry.NameResolver, data)
	if err != nil {
		return "", err
	}
	var resolved common.Address
	if err := resolverABI.UnpackIntoInterface(&resolved, "addr", out); err != nil {
		return "", boterr.Wrap(boterr.CodeUnavailable, "decode resolved address", err)
	}
	if resolved == (common.Address{}) {
		return "", boterr.New(boterr.CodeInvalidInput, fmt.Sprintf("name %s does not resolve", name))
	}
	return resolved.Hex(), nil
}

// nameHash implements the EIP-137 recursive hash over the name's labels.
func nameHash(name string) [32]byte {
	var node [32]byte
	labels := strings.Split(strings.ToLower(strings.TrimSpace(name)), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], label))
	}
	return node
}

// Allowance reads how much the spender may pull from owner.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
}

// Approve grants the spender exactly amount and waits for the receipt.
func (c *Client) Approve(ctx context.Context, acct wallet.Account, token, spender string, amount *big.Int) (string, error) {
	data, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", boterr.Wrap(boterr.CodeInternal, "pack approve call", err)
	}
	target := common.HexToAddress(token)
	return c.send(ctx, acct, &target, big.NewInt(0), data, approveGasLimit, true)
}

// ExecuteQuote broadcasts a solver route. The gas limit is double the
// solver's estimate, or a fixed ceiling when the solver reports none.
// Broadcast failures surface verbatim so the user sees the node's reason.
func (c *Client) ExecuteQuote(ctx context.Context, acct wallet.Account, to, calldata, value string, gasEstimate uint64) (string, error) {
	data, err := decodeHex(calldata)
	if err != nil {
		return "", boterr.Wrap(boterr.CodeInvalidInput, "decode route calldata", err)
	}
	val, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return "", boterr.New(boterr.CodeInvalidInput, "invalid route value")
	}
	gasLimit := uint64(swapGasFallback)
	if gasEstimate != 0 {
		gasLimit = gasEstimate * 2
	}
	target := common.HexToAddress(to)
	return c.send(ctx, acct, &target, val, data, gasLimit, true)
}

// Transfer sends native ETH to a destination address.
func (c *Client) Transfer(ctx context.Context, acct wallet.Account, to string, amountWei *big.Int) (string, error) {
	target := common.HexToAddress(to)
	return c.send(ctx, acct, &target, amountWei, nil, transferGasLimit, true)
}

func (c *Client) send(ctx context.Context, acct wallet.Account, to *common.Address, value *big.Int, data []byte, gasLimit uint64, wait bool) (string, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", boterr.Wrap(boterr.CodeUnavailable, "fetch gas price", err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, common.HexToAddress(acct.Address))
	if err != nil {
		return "", boterr.Wrap(boterr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(registry.ChainID)), acct.Key)
	if err != nil {
		return "", boterr.Wrap(boterr.CodeInternal, "sign transaction", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", boterr.Wrap(boterr.CodeBroadcast, "broadcast transaction", err)
	}
	hash := signed.Hash().Hex()
	if !wait {
		return hash, nil
	}
	if err := c.waitReceipt(ctx, signed.Hash()); err != nil {
		return hash, err
	}
	return hash, nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) error {
	waitCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return nil
			}
			return boterr.New(boterr.CodeBroadcast, "transaction reverted on-chain")
		}
		// Not-yet-mined lookups and transient polling failures both fall
		// through to the next tick until the timeout.
		select {
		case <-waitCtx.Done():
			return boterr.Wrap(boterr.CodeBroadcast, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) callUint(ctx context.Context, token, method string, args ...any) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, fmt.Sprintf("pack %s call", method), err)
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, boterr.New(boterr.CodeUnavailable, fmt.Sprintf("%s returned no data", method))
	}
	return new(big.Int).SetBytes(out), nil
}

func (c *Client) call(ctx context.Context, token string, data []byte) ([]byte, error) {
	target := common.HexToAddress(token)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeUnavailable, "call contract", err)
	}
	return out, nil
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	return hex.DecodeString(clean)
}
