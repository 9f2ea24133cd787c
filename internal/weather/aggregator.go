package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrClosed is reported by subscriptions created after Close.
var ErrClosed = errors.New("aggregator closed")

// TransportError wraps an upstream failure for one fetch epoch.
type TransportError struct {
	Epoch uint64
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("epoch %d: transport: %v", e.Epoch, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type state int

const (
	stateIdle state = iota
	stateAccumulating
	stateFetching
)

func (s state) String() string {
	switch s {
	case stateAccumulating:
		return "accumulating"
	case stateFetching:
		return "fetching"
	default:
		return "idle"
	}
}

// Config holds the Aggregator's fixed request settings.
type Config struct {
	BaseURL  string
	Location Location

	// SettleWindow is how long the aggregator waits after the last new
	// registration before fetching.
	SettleWindow time.Duration

	// FetchTimeout bounds one upstream call (0 = no timeout).
	FetchTimeout time.Duration
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

func WithMetrics(m Metrics) Option {
	return func(a *Aggregator) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithSink adds a ResponseSink notified after every successful fetch.
func WithSink(s ResponseSink) Option {
	return func(a *Aggregator) {
		if s != nil {
			a.sinks = append(a.sinks, s)
		}
	}
}

// afterFunc schedules f after d and returns a function that cancels it.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Aggregator coalesces dataset registrations into one combined upstream fetch
// per settled burst, caches the latest response and fans it out to
// per-dataset subscriptions.
//
// All state transitions happen under mu. Only the transport call runs
// without it.
type Aggregator struct {
	transport Transport
	cfg       Config
	log       zerolog.Logger
	metrics   Metrics
	sinks     []ResponseSink
	after     afterFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	registry  *Registry
	state     state
	stopTimer func() bool
	timerGen  uint64
	pending   bool
	epoch     uint64
	latest    *CombinedResponse
	subs      map[*Subscription]struct{}
	closed    bool
}

// NewAggregator creates an Aggregator that fetches through transport.
func NewAggregator(transport Transport, cfg Config, opts ...Option) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		transport: transport,
		cfg:       cfg,
		log:       zerolog.Nop(),
		metrics:   nopMetrics{},
		after:     timeAfterFunc,
		ctx:       ctx,
		cancel:    cancel,
		registry:  NewRegistry(),
		subs:      make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register records a dataset request. It reports whether the dataset/range
// fingerprint was new. Only new fingerprints start (or extend) a settle
// window; a repeat just moves the active range.
func (a *Aggregator) Register(key DatasetKey, rng DateRange) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registerLocked(key, rng)
}

// Projection subscribes to key. The latest cached response, if any, is
// delivered immediately.
func (a *Aggregator) Projection(key DatasetKey) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subscribeLocked(key)
}

// RegisterAndSubscribe registers key/rng and subscribes to key in one step.
func (a *Aggregator) RegisterAndSubscribe(key DatasetKey, rng DateRange) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registerLocked(key, rng)
	return a.subscribeLocked(key)
}

// Refresh starts a new settle window over the whole ledger. It returns false
// when there is nothing registered, a window is already open, or the
// aggregator is closed.
func (a *Aggregator) Refresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.registry.Len() == 0 {
		return false
	}
	switch a.state {
	case stateIdle:
		a.armLocked()
		return true
	case stateFetching:
		a.pending = true
		return true
	default:
		return false
	}
}

// Current returns the projection of key over the cached response.
func (a *Aggregator) Current(key DatasetKey) (Series, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return Series{}, 0
	}
	return a.latest.Project(key), a.latest.Epoch
}

// Latest returns the cached response, or nil before the first success.
func (a *Aggregator) Latest() *CombinedResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Status is a point-in-time view of the aggregator.
type Status struct {
	State         string          `json:"state"`
	Epoch         uint64          `json:"epoch"`
	ActiveRange   DateRange       `json:"activeRange"`
	Records       []RequestRecord `json:"records"`
	Subscriptions int             `json:"subscriptions"`
	Pending       bool            `json:"pending"`
}

func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		State:         a.state.String(),
		Epoch:         a.epoch,
		ActiveRange:   a.registry.ActiveRange(),
		Records:       a.registry.Snapshot(),
		Subscriptions: len(a.subs),
		Pending:       a.pending,
	}
}

// Close stops the settle timer, cancels an in-flight fetch and closes every
// subscription.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.stopTimer != nil {
		a.stopTimer()
		a.stopTimer = nil
	}
	a.cancel()
	for s := range a.subs {
		close(s.ch)
	}
	a.subs = make(map[*Subscription]struct{})
	a.metrics.SetSubscriptions(0)
}

func (a *Aggregator) registerLocked(key DatasetKey, rng DateRange) bool {
	if a.closed {
		return false
	}
	isNew := a.registry.Register(key, rng)
	a.metrics.RecordRegistration(isNew)
	if !isNew {
		a.log.Debug().
			Str("dataset", key.String()).
			Str("range", rng.String()).
			Msg("dataset already registered")
		return false
	}

	a.log.Debug().
		Str("dataset", key.String()).
		Str("range", rng.String()).
		Str("state", a.state.String()).
		Msg("dataset registered")

	if a.state == stateFetching {
		a.pending = true
		return true
	}
	a.armLocked()
	return true
}

// armLocked (re)starts the settle timer and enters Accumulating.
func (a *Aggregator) armLocked() {
	if a.stopTimer != nil {
		a.stopTimer()
	}
	a.timerGen++
	gen := a.timerGen
	a.state = stateAccumulating
	a.stopTimer = a.after(a.cfg.SettleWindow, func() { a.flush(gen) })
}

// flush runs one fetch epoch. gen guards against a timer that fired after it
// was superseded.
func (a *Aggregator) flush(gen uint64) {
	a.mu.Lock()
	if a.closed || gen != a.timerGen || a.state != stateAccumulating {
		a.mu.Unlock()
		return
	}
	a.state = stateFetching
	a.stopTimer = nil
	a.epoch++
	epoch := a.epoch
	active := a.registry.ActiveRange()
	params := BuildParams(a.registry.Snapshot(), active, a.cfg.Location)
	a.mu.Unlock()

	a.log.Info().
		Uint64("epoch", epoch).
		Str("hourly", params.Get(string(Hourly))).
		Str("daily", params.Get(string(Daily))).
		Str("range", active.String()).
		Msg("fetching combined datasets")

	start := time.Now()
	resp, err := a.fetch(epoch, params, active)
	elapsed := time.Since(start)
	a.metrics.RecordFetch(err == nil, elapsed)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.state = stateIdle

	if err != nil {
		a.log.Error().Err(err).Uint64("epoch", epoch).Dur("elapsed", elapsed).Msg("combined fetch failed; keeping cached response")
		for s := range a.subs {
			s.offer(Update{Key: s.key, Epoch: epoch, Err: err})
		}
	} else {
		a.latest = resp
		for _, sink := range a.sinks {
			sink.SaveResponse(resp)
		}
		a.log.Info().Uint64("epoch", epoch).Dur("elapsed", elapsed).Int("subscriptions", len(a.subs)).Msg("combined fetch completed")
		for s := range a.subs {
			s.offer(Update{Key: s.key, Epoch: epoch, Series: resp.Project(s.key)})
		}
	}

	if a.pending {
		a.pending = false
		a.armLocked()
	}
}

func (a *Aggregator) fetch(epoch uint64, params Params, active DateRange) (*CombinedResponse, error) {
	ctx := a.ctx
	if a.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.FetchTimeout)
		defer cancel()
	}

	body, err := a.transport.Fetch(ctx, a.cfg.BaseURL, params)
	if err != nil {
		return nil, &TransportError{Epoch: epoch, Err: err}
	}
	resp, err := DecodeCombinedResponse(body)
	if err != nil {
		return nil, &TransportError{Epoch: epoch, Err: err}
	}
	resp.Epoch = epoch
	resp.FetchedAt = time.Now().UTC()
	resp.Params = params
	resp.Range = active
	return resp, nil
}

func (a *Aggregator) subscribeLocked(key DatasetKey) *Subscription {
	s := &Subscription{
		ID:  uuid.NewString(),
		key: key,
		ch:  make(chan Update, 1),
		agg: a,
	}
	if a.closed {
		s.ch <- Update{Key: key, Err: ErrClosed}
		close(s.ch)
		return s
	}

	a.subs[s] = struct{}{}
	a.metrics.SetSubscriptions(len(a.subs))
	if a.latest != nil {
		s.offer(Update{Key: key, Epoch: a.latest.Epoch, Series: a.latest.Project(key)})
	}
	return s
}

func (a *Aggregator) unsubscribe(s *Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.subs[s]; !ok {
		return
	}
	delete(a.subs, s)
	close(s.ch)
	a.metrics.SetSubscriptions(len(a.subs))
}
