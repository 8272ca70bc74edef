package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/FundManagerGo/config"
	"github.com/dyike/FundManagerGo/consts"
	"github.com/dyike/FundManagerGo/internal/agent"
	"github.com/dyike/FundManagerGo/internal/stream"
	"github.com/dyike/FundManagerGo/models"
)

// AgentCaller issues one streaming invocation against an agent endpoint.
type AgentCaller interface {
	Invoke(ctx context.Context, endpoint string, payload any, emit agent.EmitFunc) (json.RawMessage, error)
}

// TurnWriter initiates a best-effort persistence of one stage turn. It must
// return without blocking on the write.
type TurnWriter interface {
	WriteTurnAsync(sessionId, stage, input, result string)
}

// Payload is the pipeline entry point: the investor profile plus an
// optional session id. A missing session id is synthesized from the
// wall-clock start time.
type Payload struct {
	InputData *models.ConsultationRequest `json:"input_data"`
	SessionId string                      `json:"session_id,omitempty"`
}

// NewSessionId derives a session id from a wall-clock instant.
func NewSessionId(now time.Time) string {
	return "session_" + now.Format("20060102_150405")
}

// Orchestrator drives the fixed financial → portfolio → risk stage sequence.
// Exactly one stage is active at a time; each stage's terminal result feeds
// the next stage's payload. Stage events are relayed to the caller tagged
// with the active stage name and session id.
type Orchestrator struct {
	caller    AgentCaller
	memory    TurnWriter
	endpoints map[string]string
	log       *logrus.Entry
}

func NewOrchestrator(cfg *config.Config, caller AgentCaller, memory TurnWriter) *Orchestrator {
	return &Orchestrator{
		caller:    caller,
		memory:    memory,
		endpoints: cfg.StageEndpoints(),
		log:       logrus.WithField("component", "pipeline"),
	}
}

// Consult resolves the entry payload and runs the pipeline.
func (o *Orchestrator) Consult(ctx context.Context, payload Payload, emit agent.EmitFunc) (*models.PipelineState, error) {
	sessionId := payload.SessionId
	if sessionId == "" {
		sessionId = NewSessionId(time.Now())
	}
	if payload.InputData == nil {
		return nil, fmt.Errorf("input_data is required")
	}
	return o.Run(ctx, payload.InputData, sessionId, emit)
}

// Run executes the three stages in order. On stage failure the pipeline
// emits a single error event and stops; completed stages keep their
// persisted turns.
func (o *Orchestrator) Run(ctx context.Context, req *models.ConsultationRequest, sessionId string, emit agent.EmitFunc) (*models.PipelineState, error) {
	state := &models.PipelineState{Request: req, SessionId: sessionId}
	correlator := stream.NewCorrelator()

	var input any = req
	for _, stage := range consts.StageOrder {
		// Correlation state never crosses a stage boundary.
		correlator.Reset()

		o.emit(emit, &stream.Event{
			Type:      stream.EventNodeStart,
			AgentName: stage,
			SessionId: sessionId,
		})

		result, err := o.caller.Invoke(ctx, o.endpoints[stage], input, func(ev *stream.Event) {
			o.relay(correlator, stage, sessionId, ev, emit)
		})
		if err != nil {
			o.log.WithError(err).Errorf("stage %s failed (session %s)", stage, sessionId)
			o.emit(emit, &stream.Event{
				Type:      stream.EventError,
				AgentName: stage,
				SessionId: sessionId,
				Error:     err.Error(),
			})
			return state, fmt.Errorf("stage %s: %w", stage, err)
		}

		o.emit(emit, &stream.Event{
			Type:      stream.EventNodeComplete,
			AgentName: stage,
			SessionId: sessionId,
			Result:    result,
		})

		resultText := stream.TextOf(result)
		state.SetStageResult(stage, resultText)

		// The turn write is initiated before the successor stage begins so
		// the session transcript stays causally ordered, but it never
		// blocks stage advancement.
		if o.memory != nil {
			o.memory.WriteTurnAsync(sessionId, stage, payloadText(input), resultText)
		}

		input = json.RawMessage(result)
	}

	return state, nil
}

// relay tags a stage event with its origin and passes tool events through
// the correlator so results carry their originating tool's name and input.
func (o *Orchestrator) relay(correlator *stream.Correlator, stage, sessionId string, ev *stream.Event, emit agent.EmitFunc) {
	ev.AgentName = stage
	ev.SessionId = sessionId

	switch ev.Type {
	case stream.EventToolUse:
		correlator.Track(ev.ToolUseId, ev.ToolName, ev.ToolInput)
	case stream.EventToolResult:
		if call, ok := correlator.Resolve(ev.ToolUseId); ok {
			ev.ToolName = call.ToolName
			ev.ToolInput = call.ToolInput
		} else {
			// Unmatched results are still relayed, labeled as unknown.
			ev.ToolName = "unknown"
		}
	}

	o.emit(emit, ev)
}

func (o *Orchestrator) emit(emit agent.EmitFunc, ev *stream.Event) {
	if emit != nil {
		emit(ev)
	}
}

func payloadText(input any) string {
	switch v := input.(type) {
	case json.RawMessage:
		return stream.TextOf(v)
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// RunStream adapts Consult to a channel consumer. The channel is closed when
// the run finishes; cancelling the context abandons the run and closes the
// in-flight agent connection.
func (o *Orchestrator) RunStream(ctx context.Context, payload Payload) <-chan *stream.Event {
	events := make(chan *stream.Event, 64)
	go func() {
		defer close(events)
		_, _ = o.Consult(ctx, payload, func(ev *stream.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events
}
