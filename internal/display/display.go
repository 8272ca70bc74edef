package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/FundManagerGo/consts"
	"github.com/dyike/FundManagerGo/models"
)

var (
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginTop(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6B7280")).
			Padding(0, 2).
			Width(78)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED"))
)

// ConsultationView renders the recovered JSON of each completed stage as
// terminal panels.
type ConsultationView struct {
	out io.Writer
}

func NewConsultationView(out io.Writer) *ConsultationView {
	return &ConsultationView{out: out}
}

// Render shows every stage result present in the final pipeline state.
func (v *ConsultationView) Render(state *models.PipelineState) {
	if state == nil {
		return
	}
	v.RenderRequest(state.Request)
	if state.FinancialAnalysis != "" {
		v.RenderFinancial(state.FinancialAnalysis)
	}
	if state.PortfolioRecommendation != "" {
		v.RenderPortfolio(state.PortfolioRecommendation)
	}
	if state.RiskAnalysis != "" {
		v.RenderRisk(state.RiskAnalysis)
	}
}

func (v *ConsultationView) RenderRequest(req *models.ConsultationRequest) {
	if req == nil {
		return
	}
	v.section("📋 Investor Profile")
	lines := []string{
		fmt.Sprintf("%s %s", labelStyle.Render("Investable amount:"), FormatKRW(req.TotalInvestableAmount)),
		fmt.Sprintf("%s %s", labelStyle.Render("Target amount:"), FormatKRW(req.TargetAmount)),
		fmt.Sprintf("%s %d", labelStyle.Render("Age:"), req.Age),
		fmt.Sprintf("%s %d years", labelStyle.Render("Experience:"), req.StockInvestmentExperienceYears),
		fmt.Sprintf("%s %s", labelStyle.Render("Purpose:"), req.InvestmentPurpose),
		fmt.Sprintf("%s %s", labelStyle.Render("Sectors:"), strings.Join(req.PreferredSectors, ", ")),
	}
	fmt.Fprintln(v.out, panelStyle.Render(strings.Join(lines, "\n")))
}

func (v *ConsultationView) RenderFinancial(result string) {
	v.section("📌 " + consts.Agent_FinancialAnalyst + " — Financial Assessment")

	var analysis FinancialAnalysis
	if !ExtractJSON(result, &analysis) {
		v.raw(result)
		return
	}

	lines := []string{
		analysis.Summary,
		"",
		fmt.Sprintf("%s %s", labelStyle.Render("Risk profile:"), analysis.RiskProfile),
		fmt.Sprintf("%s %.1f%%", labelStyle.Render("Required annual return:"), analysis.RequiredAnnualReturnRate),
	}
	if analysis.RiskProfileReason != "" {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Reasoning:"), analysis.RiskProfileReason))
	}
	if len(analysis.KeySectors) > 0 {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Key sectors:"), strings.Join(analysis.KeySectors, " · ")))
	}
	fmt.Fprintln(v.out, panelStyle.Render(strings.Join(lines, "\n")))
}

func (v *ConsultationView) RenderPortfolio(result string) {
	v.section("📌 " + consts.Agent_PortfolioArchitect + " — Portfolio Design")

	var plan PortfolioPlan
	if !ExtractJSON(result, &plan) {
		v.raw(result)
		return
	}

	var lines []string
	lines = append(lines, allocationLines(plan.PortfolioAllocation)...)
	if plan.Reason != "" {
		lines = append(lines, "", fmt.Sprintf("%s %s", labelStyle.Render("Rationale:"), plan.Reason))
	}
	if scores := plan.PortfolioScores; scores != nil {
		lines = append(lines, "",
			fmt.Sprintf("%s %.0f/10  %s", labelStyle.Render("Profitability:"), scores.Profitability.Score, scores.Profitability.Reason),
			fmt.Sprintf("%s %.0f/10  %s", labelStyle.Render("Risk management:"), scores.RiskManagement.Score, scores.RiskManagement.Reason),
			fmt.Sprintf("%s %.0f/10  %s", labelStyle.Render("Diversification:"), scores.Diversification.Score, scores.Diversification.Reason),
		)
	}
	fmt.Fprintln(v.out, panelStyle.Render(strings.Join(lines, "\n")))
}

func (v *ConsultationView) RenderRisk(result string) {
	v.section("📌 " + consts.Agent_RiskManager + " — Risk Scenarios")

	var analysis RiskAnalysis
	if !ExtractJSON(result, &analysis) {
		v.raw(result)
		return
	}

	for i, scenario := range []*RiskScenario{analysis.Scenario1, analysis.Scenario2} {
		if scenario == nil {
			continue
		}
		lines := []string{
			fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("Scenario %d:", i+1)), scenario.Name),
			scenario.Description,
			fmt.Sprintf("%s %s", labelStyle.Render("Probability:"), scenario.Probability),
		}
		if len(scenario.AllocationManagement) > 0 {
			lines = append(lines, "", labelStyle.Render("Adjusted allocation:"))
			lines = append(lines, allocationLines(scenario.AllocationManagement)...)
		}
		if scenario.Reason != "" {
			lines = append(lines, "", fmt.Sprintf("%s %s", labelStyle.Render("Strategy:"), scenario.Reason))
		}
		fmt.Fprintln(v.out, panelStyle.Render(strings.Join(lines, "\n")))
	}
}

func (v *ConsultationView) section(title string) {
	fmt.Fprintln(v.out, sectionStyle.Render(title))
}

func (v *ConsultationView) raw(result string) {
	fmt.Fprintln(v.out, warnStyle.Render("(unstructured result)"))
	fmt.Fprintln(v.out, panelStyle.Render(strings.TrimSpace(result)))
}

// allocationLines renders a ticker→percent map as sorted text bars.
func allocationLines(allocation map[string]float64) []string {
	tickers := make([]string, 0, len(allocation))
	for ticker := range allocation {
		tickers = append(tickers, ticker)
	}
	sort.Slice(tickers, func(i, j int) bool {
		if allocation[tickers[i]] != allocation[tickers[j]] {
			return allocation[tickers[i]] > allocation[tickers[j]]
		}
		return tickers[i] < tickers[j]
	})

	lines := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		pct := allocation[ticker]
		width := int(pct / 2)
		if width < 1 {
			width = 1
		}
		bar := barStyle.Render(strings.Repeat("█", width))
		lines = append(lines, fmt.Sprintf("%-8s %5.1f%% %s", ticker, pct, bar))
	}
	return lines
}
