package metrics

import (
	"errors"
	"regexp"

	proto "github.com/tarmac-project/protobuf-go/sdk/metrics"
	wapc "github.com/wapc/wapc-guest-tinygo"
)

const (
	// DefaultNamespace is used when no explicit namespace is provided.
	DefaultNamespace = "tarmac"

	capabilityName = "metrics"
	fnCounter      = "counter"
	fnGauge        = "gauge"
	fnHistogram    = "histogram"
	actionInc      = "inc"
	actionDec      = "dec"
)

var (
	// ErrInvalidMetricName indicates a metric name that does not match the supported format.
	ErrInvalidMetricName = errors.New("metric name is invalid")

	// isMetricNameValid validates metric names using the same pattern as tarmac callback validation.
	isMetricNameValid = regexp.MustCompile(`^[a-zA-Z0-9_:][a-zA-Z0-9_:]*$`)
)

// HostCall defines the waPC host function signature used by metrics operations.
type HostCall func(string, string, string, []byte) ([]byte, error)

// Client defines the metrics capability interface.
type Client interface {
	// NewCounter creates a named counter metric handle.
	NewCounter(name string) (*Counter, error)

	// NewGauge creates a named gauge metric handle.
	NewGauge(name string) (*Gauge, error)

	// NewHistogram creates a named histogram metric handle.
	NewHistogram(name string) (*Histogram, error)
}

// Config controls how a Client instance interacts with the host runtime.
type Config struct {
	// Namespace is the runtime namespace used for host calls.
	Namespace string

	// HostCall overrides the waPC host function used for metrics operations.
	HostCall HostCall
}

// HostMetrics is the metrics capability client implementation.
type HostMetrics struct {
	namespace string
	hostCall  HostCall
}

// Ensure HostMetrics satisfies the Client interface at compile time.
var _ Client = (*HostMetrics)(nil)

// New creates a metrics client with namespace defaults and optional host-call override.
func New(config Config) (*HostMetrics, error) {
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	hostCall := config.HostCall
	if hostCall == nil {
		hostCall = wapc.HostCall
	}

	return &HostMetrics{namespace: namespace, hostCall: hostCall}, nil
}

// handle carries what every metric needs to reach the host.
type handle struct {
	name      string
	namespace string
	hostCall  HostCall
}

func (c *HostMetrics) newHandle(name string) (handle, error) {
	if !isMetricNameValid.MatchString(name) {
		return handle{}, ErrInvalidMetricName
	}
	return handle{name: name, namespace: c.namespace, hostCall: c.hostCall}, nil
}

// marshaler is implemented by the generated metrics payloads.
type marshaler interface {
	MarshalVT() ([]byte, error)
}

// send encodes msg and delivers it as a best-effort call.
func (h handle) send(fn string, msg marshaler) {
	payload, err := msg.MarshalVT()
	if err != nil {
		return
	}
	_, _ = h.hostCall(h.namespace, capabilityName, fn, payload)
}

// Counter is a named counter metric handle.
type Counter struct{ handle }

// Gauge is a named gauge metric handle.
type Gauge struct{ handle }

// Histogram is a named histogram metric handle.
type Histogram struct{ handle }

// NewCounter creates a named counter metric handle.
func (c *HostMetrics) NewCounter(name string) (*Counter, error) {
	h, err := c.newHandle(name)
	if err != nil {
		return nil, err
	}
	return &Counter{h}, nil
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.send(fnCounter, &proto.MetricsCounter{Name: c.name})
}

// NewGauge creates a named gauge metric handle.
func (c *HostMetrics) NewGauge(name string) (*Gauge, error) {
	h, err := c.newHandle(name)
	if err != nil {
		return nil, err
	}
	return &Gauge{h}, nil
}

// Inc increments the gauge by one.
func (g *Gauge) Inc() { g.emit(actionInc) }

// Dec decrements the gauge by one.
func (g *Gauge) Dec() { g.emit(actionDec) }

func (g *Gauge) emit(action string) {
	g.send(fnGauge, &proto.MetricsGauge{Name: g.name, Action: action})
}

// NewHistogram creates a named histogram metric handle.
func (c *HostMetrics) NewHistogram(name string) (*Histogram, error) {
	h, err := c.newHandle(name)
	if err != nil {
		return nil, err
	}
	return &Histogram{h}, nil
}

// Observe records a value for the histogram.
func (h *Histogram) Observe(value float64) {
	h.send(fnHistogram, &proto.MetricsHistogram{Name: h.name, Value: value})
}
