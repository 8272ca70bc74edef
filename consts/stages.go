package consts

// 상담 파이프라인 stage 노드
const (
	StageFinancial = "financial"
	StagePortfolio = "portfolio"
	StageRisk      = "risk"
)

// StageOrder is the fixed execution order of the consultation pipeline.
var StageOrder = []string{StageFinancial, StagePortfolio, StageRisk}

const (
	Agent_FinancialAnalyst   = "Financial Analyst"
	Agent_PortfolioArchitect = "Portfolio Architect"
	Agent_RiskManager        = "Risk Manager"
)

var stageDisplayNames = map[string]string{
	StageFinancial: Agent_FinancialAnalyst,
	StagePortfolio: Agent_PortfolioArchitect,
	StageRisk:      Agent_RiskManager,
}

// StageDisplayName returns the human-readable agent name for a stage,
// falling back to the stage id itself for unknown stages.
func StageDisplayName(stage string) string {
	if name, ok := stageDisplayNames[stage]; ok {
		return name
	}
	return stage
}
