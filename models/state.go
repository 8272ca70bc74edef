package models

import "github.com/dyike/FundManagerGo/consts"

// PipelineState is threaded through the three consultation stages. Each
// stage reads its predecessor's result field and writes its own; the
// sequential pipeline is the single writer.
type PipelineState struct {
	Request                 *ConsultationRequest
	SessionId               string
	FinancialAnalysis       string
	PortfolioRecommendation string
	RiskAnalysis            string
}

func (s *PipelineState) SetStageResult(stage, result string) {
	switch stage {
	case consts.StageFinancial:
		s.FinancialAnalysis = result
	case consts.StagePortfolio:
		s.PortfolioRecommendation = result
	case consts.StageRisk:
		s.RiskAnalysis = result
	}
}

func (s *PipelineState) StageResult(stage string) string {
	switch stage {
	case consts.StageFinancial:
		return s.FinancialAnalysis
	case consts.StagePortfolio:
		return s.PortfolioRecommendation
	case consts.StageRisk:
		return s.RiskAnalysis
	}
	return ""
}
