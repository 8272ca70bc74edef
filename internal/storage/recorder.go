package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dyike/FundManagerGo/internal/storage/sqlite"
	"github.com/dyike/FundManagerGo/internal/stream"
	"github.com/dyike/FundManagerGo/models"
)

// Recorder mirrors a pipeline run's turns into the local store from a
// buffered queue. It sits on the event path but never blocks it: when the
// queue is full events are dropped, and store failures are logged and
// swallowed.
type Recorder struct {
	store *sqlite.Store
	runId int64

	events chan *stream.Event
	once   sync.Once
	wg     sync.WaitGroup

	seq       int
	lastInput string
	failed    bool

	log *logrus.Entry
}

func NewRecorder(ctx context.Context, store *sqlite.Store, sessionId, request string) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	runId, err := store.CreateRun(ctx, sessionId, request)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		store:     store,
		runId:     runId,
		events:    make(chan *stream.Event, 256),
		lastInput: request,
		log:       logrus.WithField("component", "recorder"),
	}

	r.wg.Add(1)
	go r.loop()
	return r, nil
}

// OnEvent enqueues one event for mirroring.
func (r *Recorder) OnEvent(ev *stream.Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Debug("recorder queue full, dropping event")
	}
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()

	for ev := range r.events {
		switch ev.Type {
		case stream.EventNodeComplete:
			r.seq++
			result := ev.ResultText()
			turn := models.TurnRecord{
				RunId:  r.runId,
				Stage:  ev.AgentName,
				Input:  r.lastInput,
				Result: result,
				Seq:    r.seq,
			}
			if err := r.store.SaveTurn(ctx, turn); err != nil {
				r.log.WithError(err).Warnf("mirror turn failed for stage %s", ev.AgentName)
			}
			// The next stage consumes this stage's result.
			r.lastInput = result
		case stream.EventError:
			r.failed = true
		}
	}

	status := sqlite.StatusDone
	if r.failed {
		status = sqlite.StatusError
	}
	if err := r.store.SetRunStatus(ctx, r.runId, status); err != nil {
		r.log.WithError(err).Warn("finalize run status failed")
	}
}

// Close drains the queue and finalizes the run's status.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.events) })
	r.wg.Wait()
}
