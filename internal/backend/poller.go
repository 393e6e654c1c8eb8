package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PendingLister is the part of the backend the poller needs.
type PendingLister interface {
	PendingPreRegistrations(ctx context.Context) ([]PreRegistration, error)
}

// PendingPoller polls the backend for pending pre-registrations on a fixed
// interval and tracks backend reachability.
type PendingPoller struct {
	lister   PendingLister
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
	mu       sync.Mutex

	connected bool
	lastError error
	lastSeen  time.Time
	pending   int

	cancel context.CancelFunc
	done   chan struct{}
	polls  sync.WaitGroup

	// OnUpdate receives every poll result. It is called from the poll goroutine.
	OnUpdate func(list []PreRegistration, err error)
}

// NewPendingPoller creates a poller. A non-positive interval defaults to 30s.
func NewPendingPoller(lister PendingLister, interval time.Duration, metrics *Metrics, logger *slog.Logger) *PendingPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingPoller{
		lister:   lister,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start begins the polling loop. It polls immediately, then on every tick,
// until ctx is cancelled or Stop is called.
func (p *PendingPoller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.pollLoop(ctx)
	}()
}

// Stop stops the polling loop and waits for it and any in-flight poll to
// exit. OnUpdate is not called after Stop returns.
func (p *PendingPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.polls.Wait()
}

// Status returns the current connection status
func (p *PendingPoller) Status() ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	errStr := ""
	if p.lastError != nil {
		errStr = p.lastError.Error()
	}

	return ConnectionStatus{
		Connected: p.connected,
		LastError: errStr,
		LastSeen:  p.lastSeen,
		Pending:   p.pending,
	}
}

func (p *PendingPoller) pollLoop(ctx context.Context) {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A slow poll is not awaited before the next.
			p.polls.Add(1)
			go func() {
				defer p.polls.Done()
				p.Poll(ctx)
			}()
		}
	}
}

// Poll fetches the pending list once and reports it through OnUpdate.
func (p *PendingPoller) Poll(ctx context.Context) {
	list, err := p.lister.PendingPreRegistrations(ctx)
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if err != nil {
		p.connected = !HasCode(err, CodeUnreachable)
		p.lastError = err
		p.pending = 0
	} else {
		p.connected = true
		p.lastError = nil
		p.lastSeen = time.Now()
		p.pending = len(list)
	}
	pending := p.pending
	p.mu.Unlock()

	p.metrics.SetPending(pending)
	if err != nil {
		p.logger.Warn("pending pre-registration poll failed", "error", err)
	} else {
		p.logger.Debug("pending pre-registrations polled", "count", len(list))
	}

	if p.OnUpdate != nil {
		p.OnUpdate(list, err)
	}
}
