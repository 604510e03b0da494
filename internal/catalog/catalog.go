// Package catalog holds the static content the simulation consumes:
// the fixed asset universe with anchor prices, the news bulletin feed,
// and the scenario level definitions. The engine reads this content
// and never mutates it.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is returned when a symbol is not in the universe.
var ErrUnknownSymbol = errors.New("catalog: unknown asset symbol")

// Asset is one entry in the fixed simulation universe. AnchorPrice is
// the reference price the historical backfill is generated around.
type Asset struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	AnchorPrice decimal.Decimal `json:"anchor_price"`
}

func a(symbol, name string, anchor float64) Asset {
	return Asset{Symbol: symbol, Name: name, AnchorPrice: decimal.NewFromFloat(anchor)}
}

// assets is the fixed universe, ~55 symbols, established at startup and
// never modified. Anchor prices are plausible teaching values, not
// live market data.
var assets = []Asset{
	a("BTC", "Bitcoin", 67000),
	a("ETH", "Ethereum", 3500),
	a("USDT", "Tether", 1),
	a("BNB", "BNB", 590),
	a("SOL", "Solana", 165),
	a("USDC", "USD Coin", 1),
	a("XRP", "XRP", 0.52),
	a("DOGE", "Dogecoin", 0.14),
	a("TON", "Toncoin", 6.8),
	a("ADA", "Cardano", 0.44),
	a("AVAX", "Avalanche", 32),
	a("SHIB", "Shiba Inu", 0.000022),
	a("DOT", "Polkadot", 6.4),
	a("LINK", "Chainlink", 14.5),
	a("TRX", "TRON", 0.12),
	a("MATIC", "Polygon", 0.68),
	a("BCH", "Bitcoin Cash", 430),
	a("ICP", "Internet Computer", 11.2),
	a("NEAR", "NEAR Protocol", 6.9),
	a("UNI", "Uniswap", 9.4),
	a("LTC", "Litecoin", 81),
	a("APT", "Aptos", 8.3),
	a("LEO", "UNUS SED LEO", 5.8),
	a("STX", "Stacks", 2.1),
	a("FIL", "Filecoin", 5.6),
	a("ETC", "Ethereum Classic", 26),
	a("ATOM", "Cosmos", 8.2),
	a("XLM", "Stellar", 0.105),
	a("IMX", "Immutable", 2.0),
	a("HBAR", "Hedera", 0.092),
	a("OP", "Optimism", 2.3),
	a("ARB", "Arbitrum", 1.05),
	a("VET", "VeChain", 0.033),
	a("INJ", "Injective", 25),
	a("MKR", "Maker", 2700),
	a("GRT", "The Graph", 0.27),
	a("RNDR", "Render", 8.4),
	a("AAVE", "Aave", 92),
	a("ALGO", "Algorand", 0.17),
	a("QNT", "Quant", 98),
	a("EGLD", "MultiversX", 40),
	a("SAND", "The Sandbox", 0.42),
	a("MANA", "Decentraland", 0.43),
	a("XTZ", "Tezos", 0.95),
	a("THETA", "Theta Network", 2.2),
	a("AXS", "Axie Infinity", 6.9),
	a("FLOW", "Flow", 0.86),
	a("EOS", "EOS", 0.78),
	a("CHZ", "Chiliz", 0.11),
	a("KAVA", "Kava", 0.67),
	a("ZEC", "Zcash", 29),
	a("DASH", "Dash", 28),
	a("ENJ", "Enjin Coin", 0.31),
	a("CRV", "Curve DAO", 0.43),
	a("COMP", "Compound", 55),
	a("1INCH", "1inch", 0.4),
}

// Assets returns the fixed universe in catalog order.
func Assets() []Asset {
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}

// Lookup returns the asset for a symbol.
func Lookup(symbol string) (Asset, error) {
	for _, as := range assets {
		if as.Symbol == symbol {
			return as, nil
		}
	}
	return Asset{}, ErrUnknownSymbol
}
