// Package flush implements the periodic push engine. Three independent
// queues (EVSE data, EVSE status, CDRs) each own a timer and drain
// through an abstract adapter; a drain still running when its timer
// fires makes the engine skip that cycle instead of piling up a second
// one.
package flush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/logger"
	"github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/internal/eventbus"
)

// Queue names used in events, metrics and logs.
const (
	QueueEVSEData   = "evse_data"
	QueueEVSEStatus = "evse_status"
	QueueCDR        = "cdr"
)

// Adapter is the transport the engine drains through. Implementations
// own batching and delivery; a returned error fails the cycle but never
// stops the engine.
type Adapter interface {
	FlushEVSEData(ctx context.Context) error
	FlushEVSEStatus(ctx context.Context) error
	FlushCDRs(ctx context.Context) error
}

type queue struct {
	name   string
	period time.Duration
	drain  func(context.Context) error

	disabled atomic.Bool
	mu       sync.Mutex
	timer    *time.Timer
}

// Engine drives the periodic flushes. Run ids are shared across queues
// so interleaved cycles stay distinguishable in logs and events.
type Engine struct {
	adapter Adapter
	bus     eventbus.EventBus
	sink    metrics.MetricsSink
	log     logger.Logger
	cfg     Config

	queues  []*queue
	runID   atomic.Uint64
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewEngine creates a flush engine. The bus and the sink are optional;
// adapter and log are required.
func NewEngine(adapter Adapter, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger, cfg Config) (*Engine, error) {
	if adapter == nil {
		return nil, fmt.Errorf("flush: adapter is required")
	}
	if log == nil {
		return nil, fmt.Errorf("flush: logger is required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()

	e := &Engine{
		adapter: adapter,
		bus:     bus,
		sink:    sink,
		log:     log,
		cfg:     cfg,
	}
	e.queues = []*queue{
		{name: QueueEVSEData, period: cfg.dataPeriod(), drain: adapter.FlushEVSEData},
		{name: QueueEVSEStatus, period: cfg.statusPeriod(), drain: adapter.FlushEVSEStatus},
		{name: QueueCDR, period: cfg.cdrPeriod(), drain: adapter.FlushCDRs},
	}
	e.queues[0].disabled.Store(cfg.DisablePushData)
	e.queues[1].disabled.Store(cfg.DisablePushStatus)
	e.queues[2].disabled.Store(cfg.DisableSendCDRs)
	return e, nil
}

// SetQueueDisabled toggles a queue at runtime. A disabled queue keeps
// its timer armed so re-enabling takes effect on the next tick. Unknown
// names are ignored.
func (e *Engine) SetQueueDisabled(name string, disabled bool) {
	for _, q := range e.queues {
		if q.name == name {
			q.disabled.Store(disabled)
		}
	}
}

// Start arms the queue timers. The engine stops when ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("flush: engine already started")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	for _, q := range e.queues {
		q := q
		q.timer = time.AfterFunc(q.period, func() { e.tick(q) })
	}
	go func() {
		<-e.ctx.Done()
		for _, q := range e.queues {
			q.timer.Stop()
		}
	}()
	e.log.Infof("flush engine started with %d queues", len(e.queues))
	return nil
}

// Stop disarms the timers. A drain in flight finishes on its own.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// tick runs one flush cycle of q. The timer is re-armed first, so a
// drain longer than the period skips the overlapping cycles and gets
// exactly one catch-up tick a full period after it started.
func (e *Engine) tick(q *queue) {
	if e.ctx.Err() != nil {
		return
	}
	q.timer.Reset(q.period)
	if q.disabled.Load() {
		return
	}
	if !q.mu.TryLock() {
		flushSkips.WithLabelValues(q.name).Inc()
		e.log.Debugf("flush %s skipped, previous cycle still running", q.name)
		return
	}
	defer q.mu.Unlock()

	run := e.runID.Add(1)
	start := time.Now()
	e.publish(events.FlushStarted{Queue: q.name, RunID: run, Time: start})

	err := drainSafe(e.ctx, q.drain)
	runtime := time.Since(start)

	outcome := "success"
	errMsg := ""
	if err != nil {
		outcome = "failure"
		cause := rootCause(err)
		errMsg = cause.Error()
		e.publish(events.AdapterException{Queue: q.name, RunID: run, Err: cause})
		e.log.Errorf("flush %s run %d failed: %v", q.name, run, cause)
	}
	flushCycles.WithLabelValues(q.name, outcome).Inc()
	flushRuntime.WithLabelValues(q.name).Observe(runtime.Seconds())
	e.publish(events.FlushFinished{Queue: q.name, RunID: run, Runtime: runtime})

	if rec, ok := e.sink.(metrics.FlushRecorder); ok {
		if serr := rec.RecordFlush(metrics.FlushRecord{
			Queue:   q.name,
			RunID:   run,
			Runtime: runtime,
			Error:   errMsg,
			Time:    start,
		}); serr != nil {
			e.log.Warnf("flush sink: %v", serr)
		}
	}
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// drainSafe runs the drain and converts a panic into an error, so a
// faulty adapter can fail a cycle but never kill a timer goroutine.
func drainSafe(ctx context.Context, drain func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flush: drain panicked: %v", r)
		}
	}()
	return drain(ctx)
}

// rootCause unwraps to the innermost error.
func rootCause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}
