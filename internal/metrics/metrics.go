// Package metrics exposes flow and control-session metrics to Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streambed"

// Frame and connection results.
const (
	ResultOK        = "ok"
	ResultRejected  = "rejected"
	ResultMalformed = "malformed"
	ResultAccepted  = "accepted"
	ResultRefused   = "refused"
)

var states = []flow.State{flow.StateStarting, flow.StatePlaying, flow.StateFailed}

type Metrics struct {
	reg *prometheus.Registry

	flowState   *prometheus.GaugeVec   // flow, state
	packets     *prometheus.CounterVec // flow, kind
	frames      *prometheus.CounterVec // command, result
	connections *prometheus.CounterVec // result

	mu   sync.Mutex
	last map[int]flow.Counters
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		flowState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "state",
			Help:      "1 for the current state of each supervised flow",
		}, []string{"flow", "state"}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "packets_total",
			Help:      "Packets observed per flow",
		}, []string{"flow", "kind"}), // kind: pushed, lost, late
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "frames_total",
			Help:      "Control frames received",
		}, []string{"command", "result"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "connections_total",
			Help:      "Control connections accepted or refused",
		}, []string{"result"}),
		last: make(map[int]flow.Counters),
	}
	m.reg.MustRegister(
		m.flowState, m.packets, m.frames, m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// OnStatus records a status report. Counters are converted to deltas
// against the previous report of the same flow; a decrease means the
// counters were reset.
func (m *Metrics) OnStatus(st flow.Status) {
	if m == nil {
		return
	}
	id := strconv.Itoa(st.Index)
	for _, s := range states {
		v := 0.0
		if s == st.State {
			v = 1
		}
		m.flowState.WithLabelValues(id, string(s)).Set(v)
	}

	m.mu.Lock()
	prev := m.last[st.Index]
	m.last[st.Index] = st.Counters
	m.mu.Unlock()

	add := func(kind string, cur, old uint64) {
		if cur < old {
			old = 0
		}
		if d := cur - old; d > 0 {
			m.packets.WithLabelValues(id, kind).Add(float64(d))
		}
	}
	add("pushed", st.Pushed, prev.Pushed)
	add("lost", st.Lost, prev.Lost)
	add("late", st.Late, prev.Late)
}

// OnRemove drops the series of a removed flow.
func (m *Metrics) OnRemove(index int) {
	if m == nil {
		return
	}
	id := strconv.Itoa(index)
	m.flowState.DeletePartialMatch(prometheus.Labels{"flow": id})
	m.packets.DeletePartialMatch(prometheus.Labels{"flow": id})

	m.mu.Lock()
	delete(m.last, index)
	m.mu.Unlock()
}

// Frame counts a control frame by command and result.
func (m *Metrics) Frame(command, result string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(command, result).Inc()
}

// Connection counts a control connection by result.
func (m *Metrics) Connection(result string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(result).Inc()
}
