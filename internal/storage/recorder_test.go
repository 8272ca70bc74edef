package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/dyike/FundManagerGo/internal/storage/sqlite"
	"github.com/dyike/FundManagerGo/internal/stream"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "fundmanager.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecorderMirrorsCompletedStages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, store, "session_a", `{"age": 32}`)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	rec.OnEvent(&stream.Event{Type: stream.EventNodeStart, AgentName: "financial"})
	rec.OnEvent(&stream.Event{Type: stream.EventTextChunk, AgentName: "financial", Data: "..."})
	rec.OnEvent(&stream.Event{Type: stream.EventNodeComplete, AgentName: "financial", Result: json.RawMessage(`"fin"`)})
	rec.OnEvent(&stream.Event{Type: stream.EventNodeComplete, AgentName: "portfolio", Result: json.RawMessage(`"port"`)})
	rec.Close()

	turns, err := store.ListTurns(ctx, "session_a")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}

	// The first turn consumes the original request, the second consumes the
	// first stage's result.
	if turns[0].Input != `{"age": 32}` || turns[0].Result != "fin" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Input != "fin" || turns[1].Result != "port" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}

	runs, _ := store.RecentRuns(ctx, 1)
	if runs[0].Status != sqlite.StatusDone {
		t.Fatalf("expected done after close, got %s", runs[0].Status)
	}
}

func TestRecorderMarksFailedRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, store, "session_a", "req")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	rec.OnEvent(&stream.Event{Type: stream.EventNodeComplete, AgentName: "financial", Result: json.RawMessage(`"fin"`)})
	rec.OnEvent(&stream.Event{Type: stream.EventError, AgentName: "portfolio", Error: "boom"})
	rec.Close()

	turns, _ := store.ListTurns(ctx, "session_a")
	if len(turns) != 1 {
		t.Fatalf("completed stage should keep its turn, got %d", len(turns))
	}

	runs, _ := store.RecentRuns(ctx, 1)
	if runs[0].Status != sqlite.StatusError {
		t.Fatalf("expected error status, got %s", runs[0].Status)
	}
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	rec, err := NewRecorder(context.Background(), store, "session_a", "req")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	rec.Close()
	rec.Close()
}

func TestRecorderRequiresStore(t *testing.T) {
	if _, err := NewRecorder(context.Background(), nil, "s", "req"); err == nil {
		t.Fatal("expected error for nil store")
	}
}
