package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dyike/FundManagerGo/config"
	"github.com/dyike/FundManagerGo/consts"
	"github.com/dyike/FundManagerGo/internal/agent"
	"github.com/dyike/FundManagerGo/internal/memory"
	"github.com/dyike/FundManagerGo/internal/stream"
	"github.com/dyike/FundManagerGo/models"
)

type scriptedStage struct {
	events []*stream.Event
	result string
	err    error
}

type scriptedCaller struct {
	stages   map[string]scriptedStage
	payloads map[string]any
	order    []string
}

func (c *scriptedCaller) Invoke(ctx context.Context, endpoint string, payload any, emit agent.EmitFunc) (json.RawMessage, error) {
	if c.payloads == nil {
		c.payloads = make(map[string]any)
	}
	c.payloads[endpoint] = payload
	c.order = append(c.order, endpoint)

	script := c.stages[endpoint]
	if script.err != nil {
		return nil, script.err
	}
	for _, ev := range script.events {
		emit(ev)
	}
	return json.Marshal(script.result)
}

type recordingWriter struct {
	mu    sync.Mutex
	turns []string
}

func (w *recordingWriter) WriteTurnAsync(sessionId, stage, input, result string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, fmt.Sprintf("%s|%s|%s", stage, input, result))
}

func (w *recordingWriter) recorded() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.turns...)
}

func testConfig() *config.Config {
	return &config.Config{
		FinancialAnalystURL:   "financial-url",
		PortfolioArchitectURL: "portfolio-url",
		RiskManagerURL:        "risk-url",
	}
}

func testRequest() *models.ConsultationRequest {
	return &models.ConsultationRequest{
		TotalInvestableAmount:          50_000_000,
		Age:                            32,
		StockInvestmentExperienceYears: 7,
		TargetAmount:                   70_000_000,
		InvestmentPurpose:              "노후 준비",
		PreferredSectors:               []string{"성장주"},
	}
}

func TestPipelineVisitsStagesInOrder(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "financial-result"},
		"portfolio-url": {result: "portfolio-result"},
		"risk-url":      {result: "risk-result"},
	}}
	writer := &recordingWriter{}

	orch := NewOrchestrator(testConfig(), caller, writer)
	state, err := orch.Run(context.Background(), testRequest(), "session_test", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOrder := []string{"financial-url", "portfolio-url", "risk-url"}
	if len(caller.order) != len(wantOrder) {
		t.Fatalf("expected %d invocations, got %d", len(wantOrder), len(caller.order))
	}
	for i, want := range wantOrder {
		if caller.order[i] != want {
			t.Fatalf("invocation %d: expected %s, got %s", i, want, caller.order[i])
		}
	}

	if state.FinancialAnalysis != "financial-result" {
		t.Fatalf("unexpected financial result: %s", state.FinancialAnalysis)
	}
	if state.PortfolioRecommendation != "portfolio-result" {
		t.Fatalf("unexpected portfolio result: %s", state.PortfolioRecommendation)
	}
	if state.RiskAnalysis != "risk-result" {
		t.Fatalf("unexpected risk result: %s", state.RiskAnalysis)
	}
}

func TestPipelineThreadsResultsBetweenStages(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: `{"risk_profile": "aggressive"}`},
		"portfolio-url": {result: `{"portfolio_allocation": {"QQQ": 60}}`},
		"risk-url":      {result: `{"scenario1": {}}`},
	}}

	orch := NewOrchestrator(testConfig(), caller, nil)
	if _, err := orch.Run(context.Background(), testRequest(), "session_test", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The financial stage receives the original request.
	if _, ok := caller.payloads["financial-url"].(*models.ConsultationRequest); !ok {
		t.Fatalf("expected financial stage to receive the request, got %T", caller.payloads["financial-url"])
	}

	// Each later stage receives its predecessor's result.
	portfolioPayload, ok := caller.payloads["portfolio-url"].(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw payload for portfolio stage, got %T", caller.payloads["portfolio-url"])
	}
	if stream.TextOf(portfolioPayload) != `{"risk_profile": "aggressive"}` {
		t.Fatalf("unexpected portfolio payload: %s", stream.TextOf(portfolioPayload))
	}

	riskPayload := caller.payloads["risk-url"].(json.RawMessage)
	if stream.TextOf(riskPayload) != `{"portfolio_allocation": {"QQQ": 60}}` {
		t.Fatalf("unexpected risk payload: %s", stream.TextOf(riskPayload))
	}
}

func TestPipelineEmitsBracketedTaggedEvents(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {
			events: []*stream.Event{{Type: stream.EventTextChunk, Data: "analyzing"}},
			result: "fin",
		},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}

	var events []*stream.Event
	orch := NewOrchestrator(testConfig(), caller, nil)
	_, err := orch.Run(context.Background(), testRequest(), "session_20240101_120000", func(ev *stream.Event) {
		copied := *ev
		events = append(events, &copied)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantPrefix := []struct {
		typ   stream.EventType
		stage string
	}{
		{stream.EventNodeStart, consts.StageFinancial},
		{stream.EventTextChunk, consts.StageFinancial},
		{stream.EventNodeComplete, consts.StageFinancial},
		{stream.EventNodeStart, consts.StagePortfolio},
	}
	if len(events) < len(wantPrefix) {
		t.Fatalf("expected at least %d events, got %d", len(wantPrefix), len(events))
	}
	for i, want := range wantPrefix {
		if events[i].Type != want.typ || events[i].AgentName != want.stage {
			t.Fatalf("event %d: expected %s/%s, got %s/%s", i, want.typ, want.stage, events[i].Type, events[i].AgentName)
		}
		if events[i].SessionId != "session_20240101_120000" {
			t.Fatalf("event %d missing session tag: %+v", i, events[i])
		}
	}

	if stream.TextOf(events[2].Result) != "fin" {
		t.Fatalf("node_complete should carry the stage result, got %s", stream.TextOf(events[2].Result))
	}
}

func TestPipelineCorrelatesToolResults(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {
			events: []*stream.Event{
				{Type: stream.EventToolUse, ToolUseId: "abc", ToolName: "gw___calculator", ToolInput: json.RawMessage(`"7*8"`)},
				{Type: stream.EventTextChunk, Data: "interleaved"},
				{Type: stream.EventToolResult, ToolUseId: "abc", Content: []stream.ContentBlock{{Text: "56"}}},
				{Type: stream.EventToolResult, ToolUseId: "ghost", Content: []stream.ContentBlock{{Text: "?"}}},
			},
			result: "fin",
		},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}

	var results []*stream.Event
	orch := NewOrchestrator(testConfig(), caller, nil)
	_, err := orch.Run(context.Background(), testRequest(), "s", func(ev *stream.Event) {
		if ev.Type == stream.EventToolResult {
			copied := *ev
			results = append(results, &copied)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 tool results, got %d", len(results))
	}
	if results[0].ToolName != "calculator" {
		t.Fatalf("expected correlated tool name, got %s", results[0].ToolName)
	}
	if results[0].ToolInputText() != "7*8" {
		t.Fatalf("expected original tool input, got %s", results[0].ToolInputText())
	}
	if results[1].ToolName != "unknown" {
		t.Fatalf("expected unmatched result to be labeled unknown, got %s", results[1].ToolName)
	}
}

func TestPipelineStopsOnStageFailure(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "fin"},
		"portfolio-url": {err: fmt.Errorf("connection refused")},
		"risk-url":      {result: "never"},
	}}
	writer := &recordingWriter{}

	var errorEvents []*stream.Event
	orch := NewOrchestrator(testConfig(), caller, writer)
	state, err := orch.Run(context.Background(), testRequest(), "s", func(ev *stream.Event) {
		if ev.Type == stream.EventError {
			errorEvents = append(errorEvents, ev)
		}
	})
	if err == nil {
		t.Fatal("expected run to fail")
	}

	// The risk stage never executes.
	if len(caller.order) != 2 {
		t.Fatalf("expected 2 invocations, got %d: %v", len(caller.order), caller.order)
	}
	if state.RiskAnalysis != "" {
		t.Fatal("risk result should be empty after portfolio failure")
	}

	if len(errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errorEvents))
	}
	if errorEvents[0].AgentName != consts.StagePortfolio {
		t.Fatalf("error event should be tagged with the failing stage, got %s", errorEvents[0].AgentName)
	}

	// Only the completed financial stage persisted a turn.
	turns := writer.recorded()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d: %v", len(turns), turns)
	}
}

func TestPipelineWritesTurnPerCompletedStage(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "fin"},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}
	writer := &recordingWriter{}

	orch := NewOrchestrator(testConfig(), caller, writer)
	if _, err := orch.Run(context.Background(), testRequest(), "s", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	turns := writer.recorded()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	// The portfolio turn's input is the financial stage's result.
	if turns[1] != "portfolio|fin|port" {
		t.Fatalf("unexpected portfolio turn: %s", turns[1])
	}
}

func TestPipelineSurvivesMemoryWriteFailure(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "fin"},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}

	// A memory client pointed at a dead endpoint: every write fails, the
	// pipeline must not notice.
	deadMemory := memory.NewClient(&config.Config{
		MemoryServiceURL: "http://127.0.0.1:1",
		MemoryId:         "mem-test",
	})

	orch := NewOrchestrator(testConfig(), caller, deadMemory)
	state, err := orch.Run(context.Background(), testRequest(), "s", nil)
	if err != nil {
		t.Fatalf("Run should succeed despite memory failures: %v", err)
	}
	if state.RiskAnalysis != "risk" {
		t.Fatalf("pipeline did not complete: %+v", state)
	}
}

func TestConsultSynthesizesSessionId(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "fin"},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}

	var sessionIds []string
	orch := NewOrchestrator(testConfig(), caller, nil)
	state, err := orch.Consult(context.Background(), Payload{InputData: testRequest()}, func(ev *stream.Event) {
		sessionIds = append(sessionIds, ev.SessionId)
	})
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}

	if state.SessionId == "" {
		t.Fatal("expected a synthesized session id")
	}
	for _, id := range sessionIds {
		if id != state.SessionId {
			t.Fatalf("event tagged with %s, state has %s", id, state.SessionId)
		}
	}
}

func TestConsultRequiresInput(t *testing.T) {
	orch := NewOrchestrator(testConfig(), &scriptedCaller{}, nil)
	if _, err := orch.Consult(context.Background(), Payload{}, nil); err == nil {
		t.Fatal("expected error for missing input_data")
	}
}

func TestNewSessionIdFormat(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := NewSessionId(at); got != "session_20240101_120000" {
		t.Fatalf("unexpected session id: %s", got)
	}
}

func TestRunStreamClosesChannel(t *testing.T) {
	caller := &scriptedCaller{stages: map[string]scriptedStage{
		"financial-url": {result: "fin"},
		"portfolio-url": {result: "port"},
		"risk-url":      {result: "risk"},
	}}

	orch := NewOrchestrator(testConfig(), caller, nil)
	events := orch.RunStream(context.Background(), Payload{InputData: testRequest(), SessionId: "s"})

	var count int
	for range events {
		count++
	}
	// Three stages, each bracketed by node_start and node_complete.
	if count != 6 {
		t.Fatalf("expected 6 events, got %d", count)
	}
}
