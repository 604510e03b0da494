// Package model defines the core domain types shared across the
// simulation engine. All monetary values use shopspring/decimal —
// never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// HistoryLimit caps every price and portfolio-value series.
	// Older points are trimmed from the front once the cap is exceeded.
	HistoryLimit = 600

	// TradeLogLimit caps the per-portfolio trade log.
	TradeLogLimit = 50

	// QuizLogLimit caps the persisted quiz attempt log.
	QuizLogLimit = 20
)

// PricePoint is one timestamped value in a price or portfolio series.
type PricePoint struct {
	Timestamp time.Time       `json:"ts"`
	Value     decimal.Decimal `json:"value"`
}

// TradeSide is the direction of a sandbox trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeEvent is an immutable record of an executed sandbox trade.
// Once appended it is never modified; the log is trimmed to
// TradeLogLimit from the front.
type TradeEvent struct {
	ID        string          `json:"id"`
	Side      TradeSide       `json:"side"`
	Symbol    string          `json:"symbol"`
	Units     decimal.Decimal `json:"units"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Detail    string          `json:"detail"`
	Timestamp time.Time       `json:"timestamp"`
}

// QuizLogEntry is one persisted quiz attempt. The engine never reads
// these; they ride along in the app-state document.
type QuizLogEntry struct {
	TopicID   string    `json:"topic_id"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// PortfolioDoc is the persisted shape of a sandbox or lab portfolio.
type PortfolioDoc struct {
	Balance  decimal.Decimal            `json:"balance"`
	Holdings map[string]decimal.Decimal `json:"holdings"`
	History  []TradeEvent               `json:"history"`
}

// ScenarioDoc is the persisted shape of the scenario/level game mode:
// which level was last played and the best star rating per level.
type ScenarioDoc struct {
	LevelID      string         `json:"level_id"`
	StarsByLevel map[string]int `json:"stars_by_level"`
}

// AppState is the full persisted application document. Course progress
// and quiz fields are carried as opaque payload for the view layer; the
// simulation engine owns only the sandbox, marketLab, and
// marketScenario slices.
type AppState struct {
	Progress            map[string]bool   `json:"progress"`
	QuizScores          map[string]int    `json:"quiz_scores"`
	TopicScores         map[string]int    `json:"topic_scores"`
	QuizLog             []QuizLogEntry    `json:"quiz_log"`
	Sandbox             PortfolioDoc      `json:"sandbox"`
	MarketLab           PortfolioDoc      `json:"market_lab"`
	MarketScenario      ScenarioDoc       `json:"market_scenario"`
	SelectedQuizTopicID string            `json:"selected_quiz_topic_id"`
	UI                  map[string]string `json:"ui"`
}

// TrimPricePoints keeps only the tail HistoryLimit points of a series.
func TrimPricePoints(points []PricePoint) []PricePoint {
	if len(points) <= HistoryLimit {
		return points
	}
	return points[len(points)-HistoryLimit:]
}

// TrimTradeEvents keeps only the tail TradeLogLimit events of a log.
func TrimTradeEvents(events []TradeEvent) []TradeEvent {
	if len(events) <= TradeLogLimit {
		return events
	}
	return events[len(events)-TradeLogLimit:]
}

// Normalize trims the capped collections in place. Called before every
// persistence write so an oversized document never reaches the store.
func (s *AppState) Normalize() {
	if len(s.QuizLog) > QuizLogLimit {
		s.QuizLog = s.QuizLog[len(s.QuizLog)-QuizLogLimit:]
	}
	s.Sandbox.History = TrimTradeEvents(s.Sandbox.History)
	s.MarketLab.History = TrimTradeEvents(s.MarketLab.History)
}
