package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/protocol"
)

// DefaultInterval is how often the charger is polled.
const DefaultInterval = 30 * time.Second

// Fetcher reads the charger's current values. *charger.Client implements it.
type Fetcher interface {
	FetchReading(ctx context.Context) (*charger.Reading, error)
}

// Status is a snapshot of the poller.
type Status struct {
	Reading     *charger.Reading `json:"reading,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	LastAttempt time.Time        `json:"last_attempt"`
	LastSuccess time.Time        `json:"last_success"`
	Interval    time.Duration    `json:"-"`
}

// Poller fetches readings on an interval and keeps the latest one. It also
// serializes all exchanges with its charger, since the protocol has no
// request correlation.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	log      *zap.Logger

	exchange sync.Mutex

	mu          sync.RWMutex
	last        *charger.Reading
	lastErr     error
	lastAttempt time.Time
	lastSuccess time.Time
	subs        map[chan *charger.Reading]struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the poller's logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a poller for f.
func New(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		subs:     make(map[chan *charger.Reading]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Polling started", zap.Duration("interval", p.interval))
	_, _ = p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Polling stopped")
			return nil
		case <-ticker.C:
			_, _ = p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch now. On failure the previous reading is kept.
func (p *Poller) Refresh(ctx context.Context) (*charger.Reading, error) {
	p.exchange.Lock()
	r, err := p.fetcher.FetchReading(ctx)
	p.exchange.Unlock()

	now := time.Now()
	p.mu.Lock()
	p.lastAttempt = now
	p.lastErr = err
	if err == nil {
		p.last = r
		p.lastSuccess = now
	}
	p.mu.Unlock()

	if err != nil {
		p.log.Warn("Poll failed", zap.Error(err))
		return nil, err
	}
	p.publish(r)
	return r, nil
}

// Do runs fn while no poll is in flight.
func (p *Poller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p.exchange.Lock()
	defer p.exchange.Unlock()
	return fn(ctx)
}

// Last returns the most recent successful reading, or nil.
func (p *Poller) Last() *charger.Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// LastState reports the state of the most recent reading. It satisfies
// charger.StateProvider.
func (p *Poller) LastState() (protocol.ChargerState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return 0, false
	}
	return p.last.State, true
}

// Status returns a snapshot of the poller.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Status{
		Reading:     p.last,
		LastAttempt: p.lastAttempt,
		LastSuccess: p.lastSuccess,
		Interval:    p.interval,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// Subscribe returns a channel that receives every new reading, and a func
// that unsubscribes and closes it. A slow subscriber only sees the newest
// reading.
func (p *Poller) Subscribe() (<-chan *charger.Reading, func()) {
	ch := make(chan *charger.Reading, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Poller) publish(r *charger.Reading) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subs {
		select {
		case ch <- r:
		default:
			// Drop the stale reading and deliver the new one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- r:
			default:
			}
		}
	}
}
