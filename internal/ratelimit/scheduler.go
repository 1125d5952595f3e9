package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// ErrSchedulerClosed is returned for requests submitted to, or still queued
// in, a Scheduler that has been closed.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Request is one outbound call. Return an error built with Throttled to ask
// the Scheduler for a retry.
type Request func(ctx context.Context) (any, error)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Name labels metrics and logs (e.g., "anilist").
	Name string

	// MaxInFlight bounds concurrently executing requests.
	MaxInFlight int

	// At most RequestsPerWindow releases happen within any Window.
	RequestsPerWindow int
	Window            time.Duration

	// MaxRetries is how many times a throttled request is re-queued.
	// A request executes at most MaxRetries+1 times.
	MaxRetries int

	// DefaultBackoff is used when a throttling signal carries no retry-after.
	// It doubles with each retry up to MaxBackoff.
	DefaultBackoff time.Duration
	MaxBackoff     time.Duration

	Clock   clockwork.Clock
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Stats is a snapshot of the dispatcher's state.
type Stats struct {
	InFlight int
	Queued   int
}

type completion struct {
	job   *job
	value any
	err   error
}

// Scheduler releases requests to a rate limited upstream in arrival order,
// never exceeding MaxInFlight concurrent requests or RequestsPerWindow
// releases per Window. Throttled requests are retried with backoff without
// holding up requests that arrive while they wait.
//
// All queue state is owned by a single dispatcher goroutine. Callers only
// interact through Schedule, Do, Stats and Close.
type Scheduler struct {
	cfg    SchedulerConfig
	clock  clockwork.Clock
	window *SlidingLog
	log    *logger.Logger

	submit      chan *job
	completions chan completion
	statsReq    chan chan Stats
	closing     chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	workers     sync.WaitGroup
}

// NewScheduler creates a Scheduler and starts its dispatcher.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.DefaultBackoff {
		cfg.MaxBackoff = cfg.DefaultBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}

	s := &Scheduler{
		cfg:         cfg,
		clock:       cfg.Clock,
		window:      NewSlidingLog(cfg.RequestsPerWindow, cfg.Window, cfg.Clock),
		log:         log.WithModule("scheduler").WithField("limiter", cfg.Name),
		submit:      make(chan *job),
		completions: make(chan completion),
		statsReq:    make(chan chan Stats),
		closing:     make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule queues req and blocks until it has a final result, ctx is done,
// or the scheduler is closed. A throttled request that used up its retries
// fails with an error matching errors.ErrRateLimitExhausted.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (any, error) {
	if req == nil {
		return nil, errors.New("ratelimit: nil request")
	}
	j := &job{ctx: ctx, req: req, result: make(chan outcome, 1)}

	select {
	case s.submit <- j:
	case <-s.closing:
		return nil, ErrSchedulerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-j.result:
		return out.value, out.err
	case <-ctx.Done():
		// The dispatcher drops the job when it reaches the head of the queue.
		return nil, ctx.Err()
	}
}

// Do schedules a typed request.
func Do[T any](ctx context.Context, s *Scheduler, req func(context.Context) (T, error)) (T, error) {
	return typedResult[T](s.Schedule(ctx, func(ctx context.Context) (any, error) {
		return req(ctx)
	}))
}

// typedResult converts a scheduled value back to T. A nil value is T's zero value.
func typedResult[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("ratelimit: unexpected result type %T", v)
	}
	return t, nil
}

// Stats returns the current in-flight and queued counts.
func (s *Scheduler) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case s.statsReq <- reply:
		return <-reply
	case <-s.stopped:
		return Stats{}
	}
}

// Close stops the dispatcher, fails every queued request with
// ErrSchedulerClosed and waits for in-flight requests until ctx is done.
func (s *Scheduler) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	<-s.stopped

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	var (
		queue    jobQueue
		inFlight int
		seq      uint64
		wake     = wakeTimer{clock: s.clock}
	)

	for {
		now := s.clock.Now()
		s.release(&queue, &inFlight, now)
		s.report(queue.Len(), inFlight)

		if at, ok := s.nextWake(queue, inFlight); ok {
			wake.set(at, now)
		} else {
			wake.clear()
		}

		select {
		case j := <-s.submit:
			j.seq = seq
			seq++
			j.queued = s.clock.Now()
			j.readyAt = j.queued
			queue.push(j)

		case c := <-s.completions:
			inFlight--
			s.complete(&queue, c)

		case reply := <-s.statsReq:
			reply <- Stats{InFlight: inFlight, Queued: queue.Len()}

		case <-wake.C():
			wake.fired()

		case <-s.closing:
			wake.clear()
			for queue.Len() > 0 {
				queue.pop().finish(nil, ErrSchedulerClosed)
			}
			s.report(0, inFlight)
			return
		}
	}
}

// release starts every head-of-queue job that is ready and fits both the
// concurrency bound and the window.
func (s *Scheduler) release(q *jobQueue, inFlight *int, now time.Time) {
	for *inFlight < s.cfg.MaxInFlight {
		head := q.peek()
		if head == nil || head.readyAt.After(now) {
			return
		}
		if err := head.ctx.Err(); err != nil {
			q.pop()
			head.finish(nil, err)
			s.record("canceled")
			continue
		}
		if !s.window.Allow() {
			return
		}

		q.pop()
		if head.retries == 0 && s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordSchedulerWait(s.cfg.Name, now.Sub(head.queued).Seconds())
		}
		*inFlight++
		s.execute(head)
	}
}

// nextWake returns when the dispatcher must look at the queue again on its
// own. With all slots busy a completion wakes it instead.
func (s *Scheduler) nextWake(q jobQueue, inFlight int) (time.Time, bool) {
	head := q.peek()
	if head == nil || inFlight >= s.cfg.MaxInFlight {
		return time.Time{}, false
	}
	at := head.readyAt
	if slot := s.window.NextSlot(); slot.After(at) {
		at = slot
	}
	return at, true
}

func (s *Scheduler) execute(j *job) {
	s.workers.Go(func() {
		value, err := invoke(j)
		select {
		case s.completions <- completion{job: j, value: value, err: err}:
		case <-s.stopped:
			if _, throttled := IsThrottled(err); throttled {
				value, err = nil, fmt.Errorf("%w: %w", ErrSchedulerClosed, err)
			}
			j.finish(value, err)
		}
	})
}

func invoke(j *job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled request panicked: %v", r)
		}
	}()
	return j.req(j.ctx)
}

// complete settles a finished execution or re-queues it after a throttle.
func (s *Scheduler) complete(q *jobQueue, c completion) {
	j := c.job
	retryAfter, throttled := IsThrottled(c.err)
	if !throttled {
		if c.err != nil {
			s.record("error")
		} else {
			s.record("success")
		}
		j.finish(c.value, c.err)
		return
	}

	attempts := j.retries + 1
	if j.retries >= s.cfg.MaxRetries {
		s.record("exhausted")
		s.log.WithError(c.err).
			WithField("attempts", attempts).
			Warn("Throttled request exhausted its retries")
		j.finish(nil, fmt.Errorf("%w: %s gave up after %d attempts: %w",
			apperrors.ErrRateLimitExhausted, s.cfg.Name, attempts, c.err))
		return
	}
	if err := j.ctx.Err(); err != nil {
		s.record("canceled")
		j.finish(nil, err)
		return
	}

	j.retries++
	delay := s.backoff(j.retries, retryAfter)
	j.readyAt = s.clock.Now().Add(delay)
	q.push(j)
	s.record("throttled")
	s.log.WithField("attempt", attempts).
		WithField("retry_in", delay.String()).
		Debug("Request throttled, re-queued")
}

// backoff returns the delay before retry number retry (1-based).
func (s *Scheduler) backoff(retry int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	delay := s.cfg.DefaultBackoff
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= s.cfg.MaxBackoff {
			return s.cfg.MaxBackoff
		}
	}
	return min(delay, s.cfg.MaxBackoff)
}

func (s *Scheduler) record(status string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSchedulerRequest(s.cfg.Name, status)
	}
}

func (s *Scheduler) report(queued, inFlight int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SetSchedulerState(s.cfg.Name, queued, inFlight)
	}
}

// wakeTimer keeps a single timer armed for the dispatcher's next deadline.
// The timer is only reset when the deadline changes.
type wakeTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
	at    time.Time
	armed bool
}

func (w *wakeTimer) set(at, now time.Time) {
	if w.armed && w.at.Equal(at) {
		return
	}
	d := at.Sub(now)
	if w.timer == nil {
		w.timer = w.clock.NewTimer(d)
	} else {
		w.timer.Stop()
		w.timer.Reset(d)
	}
	w.at = at
	w.armed = true
}

func (w *wakeTimer) clear() {
	if w.armed {
		w.timer.Stop()
		w.armed = false
	}
}

func (w *wakeTimer) fired() {
	w.armed = false
}

// C returns nil while disarmed so the select ignores stale ticks.
func (w *wakeTimer) C() <-chan time.Time {
	if !w.armed {
		return nil
	}
	return w.timer.Chan()
}
