package models

import "fmt"

// ConsultationRequest describes the investor profile submitted at the start
// of a consultation run. It is created once per run and never mutated.
type ConsultationRequest struct {
	TotalInvestableAmount          int64    `json:"total_investable_amount"`
	Age                            int      `json:"age"`
	StockInvestmentExperienceYears int      `json:"stock_investment_experience_years"`
	TargetAmount                   int64    `json:"target_amount"`
	InvestmentPurpose              string   `json:"investment_purpose"`
	PreferredSectors               []string `json:"preferred_sectors"`
}

func (r *ConsultationRequest) Validate() error {
	if r.TotalInvestableAmount <= 0 {
		return fmt.Errorf("total investable amount must be positive")
	}
	if r.TargetAmount <= 0 {
		return fmt.Errorf("target amount must be positive")
	}
	if r.Age <= 0 {
		return fmt.Errorf("age must be positive")
	}
	if r.StockInvestmentExperienceYears < 0 {
		return fmt.Errorf("experience years cannot be negative")
	}
	return nil
}
