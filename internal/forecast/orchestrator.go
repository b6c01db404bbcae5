package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/models"
)

// DefaultTimeout bounds a single backend call
const DefaultTimeout = 30 * time.Second

// Orchestrator owns the prediction state and dispatches to the active backend.
//
// Every Submit and SelectBackend advances a sequence number. A finished call
// writes state only if it still carries the latest number; older calls are
// dropped, so an out-of-order completion never overwrites a newer outcome.
type Orchestrator struct {
	registry *backend.Registry
	timeout  time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	active    models.Predictor
	state     State
	seq       uint64
	listeners []func(State)

	predictions metric.Int64Counter
	duration    metric.Float64Histogram
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMeter records prediction metrics on m
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) {
		o.initMetrics(m)
	}
}

// New creates an orchestrator with initial as the active backend
func New(registry *backend.Registry, initial string, opts ...Option) (*Orchestrator, error) {
	active, err := registry.Get(initial)
	if err != nil {
		return nil, fmt.Errorf("selecting backend %q: %w", initial, err)
	}

	o := &Orchestrator{
		registry: registry,
		timeout:  DefaultTimeout,
		logger:   log.With().Str("component", "orchestrator").Logger(),
		active:   active,
		state:    State{Status: StatusIdle, Backend: active.Name()},
	}
	o.initMetrics(noop.NewMeterProvider().Meter("forecast"))
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) initMetrics(m metric.Meter) {
	counter, err := m.Int64Counter("yield_predictions_total",
		metric.WithDescription("Prediction attempts by backend and outcome"))
	if err != nil {
		o.logger.Warn().Err(err).Msg("Creating prediction counter")
		return
	}
	hist, err := m.Float64Histogram("yield_prediction_duration_seconds",
		metric.WithDescription("Backend call latency"), metric.WithUnit("s"))
	if err != nil {
		o.logger.Warn().Err(err).Msg("Creating prediction histogram")
		return
	}
	o.predictions, o.duration = counter, hist
}

// Ticket tracks one submitted attempt
type Ticket struct {
	Seq     uint64
	done    chan struct{}
	applied bool
}

// Done is closed once the attempt has finished, whether or not it was applied
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Applied reports whether the attempt wrote state. Valid after Done is closed.
func (t *Ticket) Applied() bool {
	<-t.done
	return t.applied
}

// Wait blocks until the attempt finishes or ctx ends
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current snapshot
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Backend returns the name of the active backend
func (o *Orchestrator) Backend() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active.Name()
}

// OnChange registers fn to receive every state change, in order.
// fn is called with the orchestrator locked: it must not block or call back into it.
func (o *Orchestrator) OnChange(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// SelectBackend switches the active backend and resets state to Idle.
// An in-flight call is not cancelled; its result is discarded when it arrives.
func (o *Orchestrator) SelectBackend(name string) error {
	p, err := o.registry.Get(name)
	if err != nil {
		return fmt.Errorf("selecting backend %q: %w", name, err)
	}

	o.mu.Lock()
	o.seq++
	o.active = p
	o.setState(State{Status: StatusIdle, Backend: p.Name(), Seq: o.seq})
	o.mu.Unlock()

	o.logger.Info().Str("backend", p.Name()).Msg("Backend selected")
	return nil
}

// Submit validates req and starts a prediction on the active backend.
// Invalid input is returned immediately and leaves state untouched.
// Overlapping submissions are allowed; only the latest one may write state.
func (o *Orchestrator) Submit(ctx context.Context, req models.PredictionRequest) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.seq++
	seq := o.seq
	predictor := o.active
	o.setState(State{Status: StatusPending, Backend: predictor.Name(), Seq: seq})
	o.mu.Unlock()

	ticket := &Ticket{Seq: seq, done: make(chan struct{})}
	o.logger.Debug().Uint64("seq", seq).Str("backend", predictor.Name()).Msg("Prediction submitted")

	go o.run(ctx, ticket, predictor, req)
	return ticket, nil
}

func (o *Orchestrator) run(ctx context.Context, ticket *Ticket, predictor models.Predictor, req models.PredictionRequest) {
	defer close(ticket.done)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := predictor.Predict(callCtx, req)
	elapsed := time.Since(start)

	next := State{Backend: predictor.Name(), Seq: ticket.Seq}
	switch {
	case err != nil:
		next.Status = StatusFailed
		next.Err = models.Normalize(err)
	case resp == nil:
		next.Status = StatusFailed
		next.Err = models.NewUpstreamError(0, "The prediction service returned no result.", nil)
	default:
		next.Status = StatusSucceeded
		next.Result = resp
	}

	o.mu.Lock()
	if ticket.Seq != o.seq {
		o.mu.Unlock()
		o.logger.Debug().Uint64("seq", ticket.Seq).Str("backend", predictor.Name()).Msg("Discarding stale prediction result")
		o.record(ctx, predictor.Name(), "discarded", elapsed)
		return
	}
	o.setState(next)
	ticket.applied = true
	o.mu.Unlock()

	if next.Err != nil {
		o.logger.Warn().Err(next.Err.Unwrap()).Str("kind", next.Err.Kind.String()).Str("backend", predictor.Name()).Msg(next.Err.Message)
	} else {
		o.logger.Info().Str("backend", predictor.Name()).Float64("yield", resp.PredictedYield).Dur("elapsed", elapsed).Msg("Prediction succeeded")
	}
	o.record(ctx, predictor.Name(), next.Status.String(), elapsed)
}

func (o *Orchestrator) record(ctx context.Context, backendName, outcome string, elapsed time.Duration) {
	if o.predictions == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	o.predictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backendName),
		attribute.String("outcome", outcome),
	))
	o.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("backend", backendName)))
}

// setState must be called with mu held
func (o *Orchestrator) setState(s State) {
	o.state = s
	for _, fn := range o.listeners {
		fn(s)
	}
}
