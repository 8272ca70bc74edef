package display

import "testing"

func TestExtractJSONFromProse(t *testing.T) {
	text := `Here is my analysis.

{"summary": "stable income", "risk_profile": "중립형", "required_annual_return_rate": 8.5, "key_sectors": ["기술주", "배당주"]}

Let me know if you have questions.`

	var analysis FinancialAnalysis
	if !ExtractJSON(text, &analysis) {
		t.Fatal("expected extraction to succeed")
	}
	if analysis.RiskProfile != "중립형" {
		t.Fatalf("unexpected risk profile: %s", analysis.RiskProfile)
	}
	if analysis.RequiredAnnualReturnRate != 8.5 {
		t.Fatalf("unexpected return rate: %f", analysis.RequiredAnnualReturnRate)
	}
	if len(analysis.KeySectors) != 2 {
		t.Fatalf("unexpected sectors: %v", analysis.KeySectors)
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	text := `result: {"portfolio_allocation": {"QQQ": 60, "SCHD": 40}, "reason": "growth tilt"} done`

	var plan PortfolioPlan
	if !ExtractJSON(text, &plan) {
		t.Fatal("expected extraction to succeed")
	}
	if plan.PortfolioAllocation["QQQ"] != 60 {
		t.Fatalf("unexpected allocation: %v", plan.PortfolioAllocation)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	var analysis FinancialAnalysis
	if ExtractJSON("plain prose without structure", &analysis) {
		t.Fatal("expected extraction to fail")
	}
	if ExtractJSON("", &analysis) {
		t.Fatal("expected extraction to fail on empty text")
	}
}

func TestExtractJSONMalformedObject(t *testing.T) {
	var analysis FinancialAnalysis
	if ExtractJSON(`prefix {"summary": unterminated`, &analysis) {
		t.Fatal("expected extraction to fail on malformed json")
	}
}

func TestFormatKRW(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{50_000_000, "0.5억원"},
		{100_000_000, "1.0억원"},
		{370_000_000, "3.7억원"},
		{0, "0.0억원"},
	}
	for _, tc := range cases {
		if got := FormatKRW(tc.amount); got != tc.want {
			t.Errorf("FormatKRW(%d) = %s, want %s", tc.amount, got, tc.want)
		}
	}
}

func TestParseEok(t *testing.T) {
	if got := ParseEok(0.5); got != 50_000_000 {
		t.Fatalf("ParseEok(0.5) = %d", got)
	}
	if got := ParseEok(1.37); got != 137_000_000 {
		t.Fatalf("ParseEok(1.37) = %d", got)
	}
}
