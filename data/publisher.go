package data

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/voxelnav/logging"
	"go.viam.com/voxelnav/utils"
)

// CaptureFunc produces the snapshot to publish. Session and sequence are overwritten.
type CaptureFunc func(ctx context.Context) (*Snapshot, error)

const defaultStopTimeout = 5 * time.Second

// PublisherParams configures a Publisher.
type PublisherParams struct {
	Interval time.Duration
	Store    Store
	Capture  CaptureFunc
	Logger   logging.Logger
	// Clock drives the interval ticker. Defaults to the wall clock.
	Clock clock.Clock
	// StopTimeout bounds how long Stop waits for the background worker.
	StopTimeout time.Duration
}

// Publisher captures and stores a snapshot every Interval in the background. It can also publish
// on demand.
type Publisher struct {
	params    PublisherParams
	sessionID string
	logger    logging.Logger

	mu        sync.Mutex
	sequence  uint64
	published uint64
	workers   utils.StoppableWorkers
}

// NewPublisher checks params and assigns a fresh session id. Nothing runs until Start.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Store == nil {
		return nil, errors.New("publisher needs a store")
	}
	if params.Capture == nil {
		return nil, errors.New("publisher needs a capture function")
	}
	if params.Interval <= 0 {
		return nil, errors.Errorf("publish interval must be positive, got %v", params.Interval)
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.StopTimeout <= 0 {
		params.StopTimeout = defaultStopTimeout
	}
	if params.Logger == nil {
		params.Logger = logging.NewBlankLogger("publisher")
	}
	return &Publisher{
		params:    params,
		sessionID: uuid.NewString(),
		logger:    params.Logger,
	}, nil
}

// SessionID identifies every snapshot this publisher writes.
func (p *Publisher) SessionID() string {
	return p.sessionID
}

// Published is the number of snapshots stored so far.
func (p *Publisher) Published() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

// Start begins periodic publishing. Calling Start on a running publisher does nothing.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		return
	}
	// the ticker is created before the worker runs so a mock clock advanced right after Start
	// still fires it
	ticker := p.params.Clock.Ticker(p.params.Interval)
	p.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := p.publish(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warnw("failed to publish snapshot", "error", err)
			}
		}
	})
}

// Publish captures and stores one snapshot now.
func (p *Publisher) Publish(ctx context.Context) error {
	return p.publish(ctx)
}

func (p *Publisher) publish(ctx context.Context) error {
	snap, err := p.params.Capture(ctx)
	if err != nil {
		return errors.Wrap(err, "capturing snapshot")
	}
	return p.Put(ctx, snap)
}

// Put stamps an already captured snapshot with the session and next sequence number and stores
// it. A failed store leaves a gap in the sequence.
func (p *Publisher) Put(ctx context.Context, snap *Snapshot) error {
	p.mu.Lock()
	p.sequence++
	snap.SessionID = p.sessionID
	snap.Sequence = p.sequence
	p.mu.Unlock()

	if err := p.params.Store.Put(ctx, snap); err != nil {
		return errors.Wrap(err, "storing snapshot")
	}
	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	p.logger.Debugw("published snapshot", "sequence", snap.Sequence, "label", snap.Label)
	return nil
}

// Stop cancels the background worker and waits up to StopTimeout for it. A worker that does not
// return in time is logged and abandoned.
func (p *Publisher) Stop() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()
	if workers == nil {
		return
	}
	if !workers.StopWithin(p.params.StopTimeout) {
		p.logger.Errorw("snapshot publisher did not stop in time, leaking worker", "timeout", p.params.StopTimeout)
	}
}
