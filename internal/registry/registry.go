package registry

import "strings"

// Base mainnet is the only chain the bot trades on.
const (
	ChainID int64 = 8453

	// NativeSentinel is the reserved pseudo-address APIs use for the chain's
	// native asset where a contract address is otherwise expected.
	NativeSentinel = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	// WrappedNative is the canonical WETH contract on Base. The market-data
	// service indexes real contracts only, so price lookups for the native
	// asset go through this address.
	WrappedNative = "0x4200000000000000000000000000000000000006"

	// SolverSpender is the contract the quote solver routes swaps through;
	// ERC-20 sell legs must approve it before execution.
	SolverSpender = "0xfDAc2748713906ede00D023AA3E0Cc893828D30B"

	// NameResolver is the Basenames L2 resolver contract. Withdrawals to
	// name.eth or name.base.eth destinations resolve through it.
	NameResolver = "0xC6d566A56A1aFf6508b41f6c90ff131615583BCD"

	NativeDecimals = 18
)

// Default service endpoints, overridable through configuration.
const (
	DefaultRPCURL    = "https://mainnet.base.org"
	DefaultSolverURL = "https://metasolvertest.velvetdao.xyz/best-quotes"
	DefaultOracleURL = "https://graph.defined.fi/graphql"
	DefaultLedgerURL = "https://tbotserver.velvetdao.xyz"

	ExplorerTxURL = "https://basescan.org/tx/"
)

// IsNative reports whether addr is the native-asset sentinel.
func IsNative(addr string) bool {
	return strings.EqualFold(strings.TrimSpace(addr), NativeSentinel)
}

// PriceLookupAddress maps the native sentinel to the wrapped-native contract
// for market-data queries. Balance and approval paths must not use it.
func PriceLookupAddress(addr string) string {
	if IsNative(addr) {
		return WrappedNative
	}
	return addr
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
