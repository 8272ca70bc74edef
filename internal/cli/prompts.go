package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/FundManagerGo/internal/display"
	"github.com/dyike/FundManagerGo/models"
)

var purposeOptions = []string{
	"단기 수익 추구",
	"노후 준비",
	"주택 구입 자금",
	"자녀 교육비",
	"여유 자금 운용",
}

var sectorOptions = []string{
	"배당주 (안정적 배당)",
	"성장주 (기술/바이오)",
	"가치주 (저평가 우량주)",
	"리츠 (부동산 투자)",
	"암호화폐 (디지털 자산)",
	"글로벌 주식 (해외 분산)",
	"채권 (안전 자산)",
	"원자재/금 (인플레이션 헤지)",
	"ESG/친환경 (지속가능 투자)",
	"인프라/유틸리티 (필수 서비스)",
}

// experienceBrackets maps the selectable experience ranges to a
// representative year count.
var experienceBrackets = []struct {
	Label string
	Years int
}{
	{"0-1년", 1},
	{"1-3년", 2},
	{"3-5년", 4},
	{"5-10년", 7},
	{"10-20년", 15},
	{"20년 이상", 25},
}

// PromptForRequest interactively collects the investor profile. Amounts are
// entered in 억 units (0.5 = 5천만원).
func PromptForRequest() (*models.ConsultationRequest, error) {
	investable, err := promptForAmount("💰 Investable amount (억원 units, e.g. 0.5):", "0.5")
	if err != nil {
		return nil, err
	}

	target, err := promptForAmount("🎯 Target amount after 1 year (억원 units):", "0.7")
	if err != nil {
		return nil, err
	}

	age, err := promptForAgeBracket()
	if err != nil {
		return nil, err
	}

	experience, err := promptForExperience()
	if err != nil {
		return nil, err
	}

	var purpose string
	if err := survey.AskOne(&survey.Select{
		Message: "🎯 Investment purpose:",
		Options: purposeOptions,
	}, &purpose); err != nil {
		return nil, err
	}

	var sectors []string
	if err := survey.AskOne(&survey.MultiSelect{
		Message: "📈 Preferred sectors (space to select):",
		Options: sectorOptions,
		Default: []string{sectorOptions[1]},
	}, &sectors, survey.WithValidator(func(val interface{}) error {
		selected, ok := val.([]survey.OptionAnswer)
		if !ok {
			return fmt.Errorf("invalid selection type")
		}
		if len(selected) == 0 {
			return fmt.Errorf("select at least one sector")
		}
		return nil
	})); err != nil {
		return nil, err
	}

	return &models.ConsultationRequest{
		TotalInvestableAmount:          display.ParseEok(investable),
		Age:                            age,
		StockInvestmentExperienceYears: experience,
		TargetAmount:                   display.ParseEok(target),
		InvestmentPurpose:              purpose,
		PreferredSectors:               sectors,
	}, nil
}

func promptForAmount(message, defaultValue string) (float64, error) {
	var raw string
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
		Help:    "억원 units: 0.5 = 5천만원, 1.0 = 1억원",
	}

	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		amount, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("enter a number, e.g. 0.5")
		}
		if amount <= 0 || amount > 1000 {
			return fmt.Errorf("amount must be between 0 and 1000")
		}
		return nil
	}))
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func promptForAgeBracket() (int, error) {
	options := make([]string, 0, 17)
	for age := 20; age <= 100; age += 5 {
		options = append(options, fmt.Sprintf("%d-%d세", age, age+4))
	}

	var bracket string
	if err := survey.AskOne(&survey.Select{
		Message: "Age bracket:",
		Options: options,
		Default: options[3],
	}, &bracket); err != nil {
		return 0, err
	}

	// Midpoint of the selected 5-year bracket.
	lower, err := strconv.Atoi(strings.SplitN(bracket, "-", 2)[0])
	if err != nil {
		return 0, fmt.Errorf("parse age bracket: %w", err)
	}
	return lower + 2, nil
}

func promptForExperience() (int, error) {
	options := make([]string, 0, len(experienceBrackets))
	for _, bracket := range experienceBrackets {
		options = append(options, bracket.Label)
	}

	var selected string
	if err := survey.AskOne(&survey.Select{
		Message: "Stock investment experience:",
		Options: options,
		Default: options[3],
	}, &selected); err != nil {
		return 0, err
	}

	for _, bracket := range experienceBrackets {
		if bracket.Label == selected {
			return bracket.Years, nil
		}
	}
	return 0, fmt.Errorf("unknown experience bracket: %s", selected)
}
