// Package portfolio implements sandbox cash/holdings accounting: trade
// validation, mark-to-market valuation, and history snapshotting.
//
// A rejected trade mutates nothing — validation happens before any
// balance or holdings change. All monetary values use
// shopspring/decimal — never float64 for money.
//
// Account is not safe for concurrent use; each account is owned by a
// single engine (or scenario run) and accessed under its lock.
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coincademy/sim-engine/internal/model"
)

var (
	// ErrInvalidAmount is returned for a buy with amount <= 0.
	ErrInvalidAmount = errors.New("portfolio: trade amount must be positive")

	// ErrInsufficientBalance is returned when a buy exceeds the cash balance.
	ErrInsufficientBalance = errors.New("portfolio: insufficient balance")

	// ErrInvalidUnits is returned for a sell with units <= 0.
	ErrInvalidUnits = errors.New("portfolio: trade units must be positive")

	// ErrInsufficientUnits is returned when a sell exceeds the held units.
	ErrInsufficientUnits = errors.New("portfolio: not enough units held")

	// ErrPriceUnavailable is returned when the traded asset has no
	// positive price (a crashed asset pinned at zero cannot be bought).
	ErrPriceUnavailable = errors.New("portfolio: no price available for asset")
)

// Account is one portfolio: cash balance, per-symbol holdings, a capped
// trade log, and a capped series of total-value snapshots.
type Account struct {
	Balance  decimal.Decimal
	Holdings map[string]decimal.Decimal
	Trades   []model.TradeEvent
	Values   []model.PricePoint
}

// NewAccount creates an account with the given starting balance and a
// zero holding for every symbol in the universe.
func NewAccount(balance decimal.Decimal, universe []string) *Account {
	acct := &Account{
		Balance:  balance,
		Holdings: make(map[string]decimal.Decimal, len(universe)),
	}
	for _, symbol := range universe {
		acct.Holdings[symbol] = decimal.Zero
	}
	return acct
}

// Normalize coerces the holdings map to exactly the given universe:
// missing symbols default to zero, symbols outside the universe are
// dropped. Used when restoring a persisted portfolio whose universe
// may predate a catalog change.
func (a *Account) Normalize(universe []string) {
	normalized := make(map[string]decimal.Decimal, len(universe))
	for _, symbol := range universe {
		normalized[symbol] = a.Holdings[symbol]
	}
	a.Holdings = normalized
}

// Value computes total portfolio value: cash plus mark-to-market
// holdings at the given prices. Symbols without a price contribute
// nothing.
func (a *Account) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	total := a.Balance
	for symbol, units := range a.Holdings {
		if price, ok := prices[symbol]; ok {
			total = total.Add(units.Mul(price))
		}
	}
	return total
}

// Buy spends amount of cash on the asset at the given price.
// On success units = amount / price are credited and a trade event is
// appended; on error the account is untouched.
func (a *Account) Buy(symbol string, amount, price decimal.Decimal, now time.Time) (model.TradeEvent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.TradeEvent{}, ErrInvalidAmount
	}
	if amount.GreaterThan(a.Balance) {
		return model.TradeEvent{}, ErrInsufficientBalance
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return model.TradeEvent{}, ErrPriceUnavailable
	}

	units := amount.Div(price)
	a.Balance = a.Balance.Sub(amount)
	a.Holdings[symbol] = a.Holdings[symbol].Add(units)

	event := model.TradeEvent{
		ID:        uuid.New().String(),
		Side:      model.SideBuy,
		Symbol:    symbol,
		Units:     units,
		Amount:    amount,
		Price:     price,
		Detail:    fmt.Sprintf("Bought %s %s for %s", units.Round(6), symbol, amount.Round(2)),
		Timestamp: now,
	}
	a.appendTrade(event)
	return event, nil
}

// Sell liquidates units of the asset at the given price. On success the
// proceeds are credited and a trade event appended; on error the
// account is untouched.
func (a *Account) Sell(symbol string, units, price decimal.Decimal, now time.Time) (model.TradeEvent, error) {
	if units.LessThanOrEqual(decimal.Zero) {
		return model.TradeEvent{}, ErrInvalidUnits
	}
	held := a.Holdings[symbol]
	if units.GreaterThan(held) {
		return model.TradeEvent{}, ErrInsufficientUnits
	}

	amount := units.Mul(price)
	a.Balance = a.Balance.Add(amount)

	remaining := held.Sub(units)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	a.Holdings[symbol] = remaining

	event := model.TradeEvent{
		ID:        uuid.New().String(),
		Side:      model.SideSell,
		Symbol:    symbol,
		Units:     units,
		Amount:    amount,
		Price:     price,
		Detail:    fmt.Sprintf("Sold %s %s for %s", units.Round(6), symbol, amount.Round(2)),
		Timestamp: now,
	}
	a.appendTrade(event)
	return event, nil
}

// Snapshot appends the current total value to the value series and
// returns it. The series is trimmed to model.HistoryLimit.
func (a *Account) Snapshot(prices map[string]decimal.Decimal, now time.Time) decimal.Decimal {
	value := a.Value(prices)
	a.Values = model.TrimPricePoints(append(a.Values, model.PricePoint{
		Timestamp: now,
		Value:     value,
	}))
	return value
}

func (a *Account) appendTrade(event model.TradeEvent) {
	a.Trades = model.TrimTradeEvents(append(a.Trades, event))
}

// Doc converts the account to its persisted document shape.
func (a *Account) Doc() model.PortfolioDoc {
	holdings := make(map[string]decimal.Decimal, len(a.Holdings))
	for symbol, units := range a.Holdings {
		holdings[symbol] = units
	}
	trades := make([]model.TradeEvent, len(a.Trades))
	copy(trades, a.Trades)
	return model.PortfolioDoc{
		Balance:  a.Balance,
		Holdings: holdings,
		History:  trades,
	}
}

// Restore rebuilds an account from a persisted document, normalized to
// the given universe.
func Restore(doc model.PortfolioDoc, universe []string) *Account {
	acct := &Account{
		Balance:  doc.Balance,
		Holdings: doc.Holdings,
		Trades:   model.TrimTradeEvents(doc.History),
	}
	if acct.Holdings == nil {
		acct.Holdings = make(map[string]decimal.Decimal)
	}
	acct.Normalize(universe)
	return acct
}
