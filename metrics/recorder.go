package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Recorder instruments adapter operations.
type Recorder interface {
	// Observe records one completed operation and its outcome.
	Observe(op string, elapsed time.Duration, err error)

	// Connected tracks session open (true) and close (false) events.
	Connected(up bool)
}

type opMetrics struct {
	total    *Counter
	errors   *Counter
	duration *Histogram
}

// hostRecorder emits Recorder events through a metrics Client.
type hostRecorder struct {
	client Client
	prefix string
	conns  *Gauge

	mu  sync.Mutex
	ops map[string]*opMetrics
}

// NewRecorder returns a Recorder that names every metric after prefix, for
// example "books_db_get_query_result_total".
func NewRecorder(client Client, prefix string) (Recorder, error) {
	if !isMetricNameValid.MatchString(prefix) {
		return nil, ErrInvalidMetricName
	}

	conns, err := client.NewGauge(prefix + "_connections")
	if err != nil {
		return nil, err
	}

	return &hostRecorder{
		client: client,
		prefix: prefix,
		conns:  conns,
		ops:    make(map[string]*opMetrics),
	}, nil
}

func (r *hostRecorder) Observe(op string, elapsed time.Duration, err error) {
	m, mErr := r.metricsFor(op)
	if mErr != nil {
		return
	}

	m.total.Inc()
	if err != nil {
		m.errors.Inc()
	}
	m.duration.Observe(float64(elapsed) / float64(time.Millisecond))
}

func (r *hostRecorder) Connected(up bool) {
	if up {
		r.conns.Inc()
		return
	}
	r.conns.Dec()
}

// metricsFor lazily creates the handles for an operation.
func (r *hostRecorder) metricsFor(op string) (*opMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.ops[op]; ok {
		return m, nil
	}

	base := fmt.Sprintf("%s_%s", r.prefix, op)
	total, err := r.client.NewCounter(base + "_total")
	if err != nil {
		return nil, err
	}
	errs, err := r.client.NewCounter(base + "_errors_total")
	if err != nil {
		return nil, err
	}
	duration, err := r.client.NewHistogram(base + "_duration_ms")
	if err != nil {
		return nil, err
	}

	m := &opMetrics{total: total, errors: errs, duration: duration}
	r.ops[op] = m
	return m, nil
}

type discard struct{}

// Discard returns a Recorder that drops every event.
func Discard() Recorder { return discard{} }

func (discard) Observe(string, time.Duration, error) {}
func (discard) Connected(bool)                       {}
