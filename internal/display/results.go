package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FinancialAnalysis is the JSON payload embedded in the financial stage's
// free-text result.
type FinancialAnalysis struct {
	Summary                  string   `json:"summary"`
	RiskProfile              string   `json:"risk_profile"`
	RiskProfileReason        string   `json:"risk_profile_reason"`
	RequiredAnnualReturnRate float64  `json:"required_annual_return_rate"`
	KeySectors               []string `json:"key_sectors"`
}

type Score struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type PortfolioScores struct {
	Profitability   Score `json:"profitability"`
	RiskManagement  Score `json:"risk_management"`
	Diversification Score `json:"diversification"`
}

// PortfolioPlan is the JSON payload embedded in the portfolio stage's result.
type PortfolioPlan struct {
	PortfolioAllocation map[string]float64 `json:"portfolio_allocation"`
	Reason              string             `json:"reason"`
	PortfolioScores     *PortfolioScores   `json:"portfolio_scores,omitempty"`
}

type RiskScenario struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Probability          string             `json:"probability"`
	AllocationManagement map[string]float64 `json:"allocation_management"`
	Reason               string             `json:"reason"`
}

// RiskAnalysis is the JSON payload embedded in the risk stage's result.
type RiskAnalysis struct {
	Scenario1 *RiskScenario `json:"scenario1"`
	Scenario2 *RiskScenario `json:"scenario2"`
}

// ExtractJSON pulls the first top-level JSON object out of free text.
// Agents wrap their structured output in prose, so everything outside the
// outermost braces is discarded.
func ExtractJSON(text string, v any) bool {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), v) == nil
}

var eokUnit = decimal.NewFromInt(100_000_000)

// FormatKRW renders a won amount in 억 units, e.g. 50000000 → "0.5억원".
func FormatKRW(amount int64) string {
	eok := decimal.NewFromInt(amount).Div(eokUnit)
	return fmt.Sprintf("%s억원", eok.StringFixed(1))
}

// ParseEok converts a user-entered 억-unit amount to a won integer.
func ParseEok(eok float64) int64 {
	return decimal.NewFromFloat(eok).Mul(eokUnit).IntPart()
}
