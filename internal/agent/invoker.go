package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyike/FundManagerGo/internal/stream"
)

// EmitFunc receives decoded events as they arrive from an agent's response
// stream.
type EmitFunc func(*stream.Event)

// Invoker issues one streaming request per stage to a remote agent service
// and republishes the decoded events to its caller. The streaming invocation
// carries no client-side timeout; an unresponsive agent stalls the stage
// until the context is cancelled.
type Invoker struct {
	client *resty.Client
	log    *logrus.Entry
}

func NewInvoker() *Invoker {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")

	return &Invoker{
		client: client,
		log:    logrus.WithField("component", "invoker"),
	}
}

// Invoke posts {"input_data": payload} to the agent endpoint and decodes the
// streamed response. Every event except the terminal streaming_complete
// frame is handed to emit; the terminal frame's result is returned as the
// stage Result. A transport failure, a non-success status, an error frame,
// or stream end without a terminal frame all fail the invocation; no partial
// result is synthesized.
func (inv *Invoker) Invoke(ctx context.Context, endpoint string, payload any, emit EmitFunc) (json.RawMessage, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("agent endpoint is not configured")
	}

	resp, err := inv.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetBody(map[string]any{"input_data": payload}).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invoke agent %s: %w", endpoint, err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("invoke agent %s: unexpected status %d", endpoint, resp.StatusCode())
	}

	decoder := stream.NewDecoder(body)
	var result json.RawMessage
	haveResult := false

	for {
		ev, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if haveResult {
				// Result already captured; a dirty close after the
				// terminal frame does not fail the stage.
				break
			}
			return nil, fmt.Errorf("read agent stream: %w", err)
		}

		switch ev.Type {
		case stream.EventStreamingComplete:
			result = ev.Result
			haveResult = true
		case stream.EventError:
			return nil, fmt.Errorf("agent reported error: %s", ev.Error)
		default:
			if emit != nil {
				emit(ev)
			}
		}
	}

	if n := decoder.Malformed(); n > 0 {
		inv.log.Debugf("dropped %d malformed frames from %s", n, endpoint)
	}

	if !haveResult {
		return nil, fmt.Errorf("agent stream from %s ended without a result", endpoint)
	}
	return result, nil
}
