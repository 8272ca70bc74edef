package stream

import (
	"encoding/json"
	"testing"
)

func TestCorrelatorTrackAndResolve(t *testing.T) {
	c := NewCorrelator()
	c.Track("abc", "calculator", json.RawMessage(`"7*8"`))

	call, ok := c.Resolve("abc")
	if !ok {
		t.Fatal("expected call to resolve")
	}
	if call.ToolName != "calculator" {
		t.Fatalf("expected tool name calculator, got %s", call.ToolName)
	}
	if TextOf(call.ToolInput) != "7*8" {
		t.Fatalf("expected input 7*8, got %s", TextOf(call.ToolInput))
	}

	// Resolve removes the entry: the same id no longer correlates.
	if _, ok := c.Resolve("abc"); ok {
		t.Fatal("expected second resolve to miss")
	}
}

func TestCorrelatorMissIsSoft(t *testing.T) {
	c := NewCorrelator()
	if _, ok := c.Resolve("never-tracked"); ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestCorrelatorLatestWins(t *testing.T) {
	c := NewCorrelator()
	c.Track("id1", "old_tool", nil)
	c.Track("id1", "new_tool", nil)

	call, ok := c.Resolve("id1")
	if !ok {
		t.Fatal("expected call to resolve")
	}
	if call.ToolName != "new_tool" {
		t.Fatalf("expected latest tool name, got %s", call.ToolName)
	}
}

func TestCorrelatorNormalizesGatewayNames(t *testing.T) {
	c := NewCorrelator()
	c.Track("id1", "mcp_server___analyze_etf_performance", nil)

	call, _ := c.Resolve("id1")
	if call.ToolName != "analyze_etf_performance" {
		t.Fatalf("expected bare tool name, got %s", call.ToolName)
	}
}

func TestCorrelatorReset(t *testing.T) {
	c := NewCorrelator()
	c.Track("a", "tool_a", nil)
	c.Track("b", "tool_b", nil)
	if c.Pending() != 2 {
		t.Fatalf("expected 2 pending calls, got %d", c.Pending())
	}

	c.Reset()
	if c.Pending() != 0 {
		t.Fatalf("expected 0 pending calls after reset, got %d", c.Pending())
	}
	if _, ok := c.Resolve("a"); ok {
		t.Fatal("expected id not to correlate across a stage boundary")
	}
}
