package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyike/FundManagerGo/config"
	"github.com/dyike/FundManagerGo/models"
)

// ErrNoSummary marks a session whose summary has not been derived yet.
// Summaries are produced asynchronously by the memory service and can lag
// the last turn write by several minutes.
var ErrNoSummary = errors.New("no summary for session yet")

const (
	actorId      = "fund_manager_user"
	summaryQuery = "fund management consultation summary"

	requestTimeout = 30 * time.Second
)

// Namespace returns the hierarchical key under which a session's turns and
// derived summaries are grouped.
func Namespace(sessionId string) string {
	return fmt.Sprintf("fund_management/session/%s", sessionId)
}

// Client talks to the external memory service. Turn writes are best-effort:
// failures are logged and swallowed, never surfaced to the pipeline.
type Client struct {
	http     *resty.Client
	memoryId string
	log      *logrus.Entry
}

func NewClient(cfg *config.Config) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.MemoryServiceURL)
	client.SetTimeout(requestTimeout)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		http:     client,
		memoryId: cfg.MemoryId,
		log:      logrus.WithField("component", "memory"),
	}
}

type turnMessage struct {
	Text string `json:"text"`
	Role string `json:"role"`
}

type createEventRequest struct {
	ActorId   string        `json:"actor_id"`
	SessionId string        `json:"session_id"`
	Messages  []turnMessage `json:"messages"`
}

// WriteTurn appends one role-tagged request/response pair to the session's
// namespace. Writes with no result are skipped, as is everything when no
// memory id is configured.
func (c *Client) WriteTurn(ctx context.Context, sessionId, stage, input, result string) error {
	if c.memoryId == "" || result == "" {
		return nil
	}

	body := createEventRequest{
		ActorId:   actorId,
		SessionId: sessionId,
		Messages: []turnMessage{
			{Text: fmt.Sprintf("%s analysis request: %s", stage, input), Role: "USER"},
			{Text: fmt.Sprintf("%s result: %s", stage, result), Role: "ASSISTANT"},
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/memories/%s/events", c.memoryId))
	if err != nil {
		return fmt.Errorf("create memory event: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("create memory event: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// WriteTurnAsync initiates a turn write without blocking the caller. The
// write uses its own context so an abandoned pipeline run does not revoke
// turns for stages that already completed.
func (c *Client) WriteTurnAsync(sessionId, stage, input, result string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := c.WriteTurn(ctx, sessionId, stage, input, result); err != nil {
			c.log.WithError(err).Warnf("memory write failed for stage %s (session %s)", stage, sessionId)
		}
	}()
}

type memoryRecord struct {
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type retrieveRequest struct {
	Namespace string `json:"namespace"`
	Query     string `json:"query"`
}

type retrieveResponse struct {
	Memories []memoryRecord `json:"memories"`
}

// LatestSummary returns the newest derived summary for a session, or
// ErrNoSummary when the service has not produced one yet.
func (c *Client) LatestSummary(ctx context.Context, sessionId string) (*models.SummaryRecord, error) {
	if c.memoryId == "" {
		return nil, fmt.Errorf("memory id is not configured")
	}

	var out retrieveResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(retrieveRequest{Namespace: Namespace(sessionId), Query: summaryQuery}).
		SetResult(&out).
		Post(fmt.Sprintf("/memories/%s/retrieve", c.memoryId))
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieve memories: unexpected status %d", resp.StatusCode())
	}
	if len(out.Memories) == 0 {
		return nil, ErrNoSummary
	}

	records := out.Memories
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	newest := records[0]

	return &models.SummaryRecord{
		SessionId: sessionId,
		Content:   newest.Content.Text,
		CreatedAt: newest.CreatedAt,
	}, nil
}
