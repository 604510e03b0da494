package catalog

// Sentiment classifies a bulletin item for the view layer.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// BulletinItem is one static news item. The engine reads only Assets
// and Drift (to bias lab and scenario ticks); Headline and Sentiment
// are flavor for the view layer.
type BulletinItem struct {
	ID        string    `json:"id"`
	Sentiment Sentiment `json:"sentiment"`
	Assets    []string  `json:"assets"`
	Drift     float64   `json:"drift"`
	Headline  string    `json:"headline"`
}

// Affects reports whether the item biases the given symbol.
func (b BulletinItem) Affects(symbol string) bool {
	for _, s := range b.Assets {
		if s == symbol {
			return true
		}
	}
	return false
}

var bulletins = []BulletinItem{
	{
		ID:        "etf-inflows",
		Sentiment: SentimentBullish,
		Assets:    []string{"BTC"},
		Drift:     0.014,
		Headline:  "Spot ETF inflows hit a record week as institutional demand accelerates",
	},
	{
		ID:        "exchange-hack",
		Sentiment: SentimentBearish,
		Assets:    []string{"BTC", "ETH", "SOL"},
		Drift:     -0.013,
		Headline:  "Major exchange halts withdrawals after suspected hot-wallet breach",
	},
	{
		ID:        "layer2-upgrade",
		Sentiment: SentimentBullish,
		Assets:    []string{"ETH", "OP", "ARB"},
		Drift:     0.009,
		Headline:  "Long-awaited rollup upgrade ships, slashing layer-2 fees",
	},
	{
		ID:        "stablecoin-rules",
		Sentiment: SentimentNeutral,
		Assets:    []string{"USDT", "USDC"},
		Drift:     0.001,
		Headline:  "Regulators publish draft stablecoin reserve requirements",
	},
	{
		ID:        "meme-mania",
		Sentiment: SentimentBullish,
		Assets:    []string{"DOGE", "SHIB"},
		Drift:     0.011,
		Headline:  "Meme-coin mania returns as retail volumes triple overnight",
	},
	{
		ID:        "network-outage",
		Sentiment: SentimentBearish,
		Assets:    []string{"SOL"},
		Drift:     -0.008,
		Headline:  "Validator bug stalls block production for four hours",
	},
	{
		ID:        "defi-exploit",
		Sentiment: SentimentBearish,
		Assets:    []string{"AAVE", "CRV", "COMP", "UNI"},
		Drift:     -0.01,
		Headline:  "Lending protocol drained in flash-loan exploit, TVL plunges",
	},
	{
		ID:        "gaming-partnership",
		Sentiment: SentimentBullish,
		Assets:    []string{"SAND", "MANA", "AXS", "IMX"},
		Drift:     0.008,
		Headline:  "AAA studio announces on-chain item marketplace partnership",
	},
	{
		ID:        "mining-ban",
		Sentiment: SentimentBearish,
		Assets:    []string{"BTC", "LTC", "BCH"},
		Drift:     -0.006,
		Headline:  "Large economy proposes restrictions on proof-of-work mining",
	},
	{
		ID:        "oracle-expansion",
		Sentiment: SentimentBullish,
		Assets:    []string{"LINK"},
		Drift:     0.006,
		Headline:  "Oracle network lands data deal with major payments processor",
	},
	{
		ID:        "quiet-weekend",
		Sentiment: SentimentNeutral,
		Assets:    []string{},
		Drift:     0,
		Headline:  "Markets drift sideways in thin weekend trading",
	},
}

// Bulletins returns the static news feed.
func Bulletins() []BulletinItem {
	out := make([]BulletinItem, len(bulletins))
	copy(out, bulletins)
	return out
}

// BulletinByID returns the bulletin item with the given ID, if any.
func BulletinByID(id string) (BulletinItem, bool) {
	for _, b := range bulletins {
		if b.ID == id {
			return b, true
		}
	}
	return BulletinItem{}, false
}
