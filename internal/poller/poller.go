package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"medchat/internal/metrics"
	"medchat/internal/models"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = 3 * time.Second

// Fetcher loads the full history with a peer.
type Fetcher interface {
	FetchMessages(ctx context.Context, peerID int64) ([]models.Message, error)
}

type Config struct {
	Fetcher Fetcher
	Logger  *zap.Logger
	Metrics *metrics.Client
	// OnError, if set, is told about every failed fetch. first is true for
	// the fetch issued by Start itself.
	OnError func(peerID int64, err error, first bool)
}

// Poller refreshes one conversation on a fixed interval. At most one poll
// is active per Poller; Start replaces any previous one.
type Poller struct {
	cfg Config

	mu     sync.Mutex
	gen    uint64
	peerID int64
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{cfg: cfg}
}

// Start stops any running poll, fetches peerID's history right away and
// then once per interval. onMessages receives every successful result of
// this poll and nothing after Stop or a later Start. It runs on the poll
// goroutine and must not call back into the Poller.
func (p *Poller) Start(peerID int64, onMessages func([]models.Message), interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.gen++
	gen := p.gen
	p.peerID = peerID
	p.active = true
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	// The generation bump above already fences off the old loop's results.
	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	p.cfg.Logger.Debug("polling started", zap.Int64("peer_id", peerID), zap.Duration("interval", interval))
	go p.run(ctx, done, gen, peerID, onMessages, interval)
}

// Stop ends the active poll and waits for its goroutine to exit. It is
// safe to call at any time, any number of times.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.gen++
	p.active = false
	cancel, done, peerID := p.cancel, p.done, p.peerID
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	cancel()
	<-done
	p.cfg.Logger.Debug("polling stopped", zap.Int64("peer_id", peerID))
}

// Active returns the polled peer, if any.
func (p *Poller) Active() (peerID int64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerID, p.active
}

func (p *Poller) run(ctx context.Context, done chan struct{}, gen uint64, peerID int64, onMessages func([]models.Message), interval time.Duration) {
	defer close(done)

	// The ticker is armed before the first fetch so the cadence is anchored
	// at Start. Ticks that fire during a fetch are dropped by time.Ticker.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx, gen, peerID, onMessages, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen, peerID, onMessages, false)
		}
	}
}

// tick performs one fetch. The fetch is synchronous, so a slow response
// swallows the ticks it spans rather than overlapping them.
func (p *Poller) tick(ctx context.Context, gen uint64, peerID int64, onMessages func([]models.Message), first bool) {
	if ctx.Err() != nil {
		return
	}
	p.cfg.Metrics.PollTick()

	start := time.Now()
	msgs, err := p.cfg.Fetcher.FetchMessages(ctx, peerID)
	p.cfg.Metrics.ObserveFetch(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		p.cfg.Metrics.PollFailure()
		p.cfg.Logger.Warn("fetching messages failed",
			zap.Int64("peer_id", peerID), zap.Bool("first", first), zap.Error(err))
		if p.cfg.OnError != nil && p.current(gen, peerID) {
			p.cfg.OnError(peerID, err, first)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.peerID != peerID || !p.active {
		p.cfg.Logger.Debug("dropping stale poll result", zap.Int64("peer_id", peerID))
		return
	}
	onMessages(msgs)
}

func (p *Poller) current(gen uint64, peerID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen && p.peerID == peerID && p.active
}
