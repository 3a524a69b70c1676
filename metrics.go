// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for one RLC AM entity. All methods
// are nil-safe: calls on a nil *Metrics are no-ops, so an entity built
// without a registry still runs at full speed.
type Metrics struct {
	sdusDelivered   prometheus.Counter
	sdusSubmitted   prometheus.Counter
	pdusSent        *prometheus.CounterVec
	pdusDropped     *prometheus.CounterVec
	retxTotal       prometheus.Counter
	maxRetxReached  prometheus.Counter
	txWindowOccup   prometheus.Gauge
	rxWindowOccup   prometheus.Gauge
	statusSent      prometheus.Counter
	bufferExhausted prometheus.Counter
}

// NewMetrics creates and registers entity metrics under reg, labeled by
// bearer. If reg is nil, metrics are created but not registered (useful for
// tests). On re-registration, existing collectors are reused so restarts
// keep exporting continuous series.
func NewMetrics(reg prometheus.Registerer, bearer string) *Metrics {
	constLabels := prometheus.Labels{"bearer": bearer}

	m := &Metrics{
		sdusDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "sdus_delivered_total",
			Help:        "Total number of SDUs delivered to the upper layer, in order.",
			ConstLabels: constLabels,
		}),
		sdusSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "sdus_submitted_total",
			Help:        "Total number of SDUs accepted from the upper layer.",
			ConstLabels: constLabels,
		}),
		pdusSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "pdus_sent_total",
			Help:        "Total number of PDUs handed to the scheduler, by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		pdusDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "pdus_dropped_total",
			Help:        "Total number of received PDUs dropped, by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		retxTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "retransmissions_total",
			Help:        "Total number of PDU retransmissions, including resegmentations.",
			ConstLabels: constLabels,
		}),
		maxRetxReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "max_retx_reached_total",
			Help:        "Total number of times a PDU's retx counter reached max_retx_thresh.",
			ConstLabels: constLabels,
		}),
		txWindowOccup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rlcam",
			Name:        "tx_window_occupancy",
			Help:        "Number of unacknowledged PDUs currently held in the tx window.",
			ConstLabels: constLabels,
		}),
		rxWindowOccup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rlcam",
			Name:        "rx_window_occupancy",
			Help:        "Number of SNs with at least one received segment, awaiting delivery.",
			ConstLabels: constLabels,
		}),
		statusSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "status_pdus_sent_total",
			Help:        "Total number of status PDUs emitted.",
			ConstLabels: constLabels,
		}),
		bufferExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rlcam",
			Name:        "buffer_pool_exhausted_total",
			Help:        "Total number of allocations refused by the buffer pool.",
			ConstLabels: constLabels,
		}),
	}

	if reg != nil {
		m.sdusDelivered = registerOrReuse(reg, m.sdusDelivered).(prometheus.Counter)
		m.sdusSubmitted = registerOrReuse(reg, m.sdusSubmitted).(prometheus.Counter)
		m.pdusSent = registerOrReuse(reg, m.pdusSent).(*prometheus.CounterVec)
		m.pdusDropped = registerOrReuse(reg, m.pdusDropped).(*prometheus.CounterVec)
		m.retxTotal = registerOrReuse(reg, m.retxTotal).(prometheus.Counter)
		m.maxRetxReached = registerOrReuse(reg, m.maxRetxReached).(prometheus.Counter)
		m.txWindowOccup = registerOrReuse(reg, m.txWindowOccup).(prometheus.Gauge)
		m.rxWindowOccup = registerOrReuse(reg, m.rxWindowOccup).(prometheus.Gauge)
		m.statusSent = registerOrReuse(reg, m.statusSent).(prometheus.Counter)
		m.bufferExhausted = registerOrReuse(reg, m.bufferExhausted).(prometheus.Counter)
	}

	return m
}

// registerOrReuse registers c with reg, returning the already-registered
// collector instead of panicking if this entity (or a prior instance with
// the same bearer label) already registered it.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}

	return c
}

func (m *Metrics) deliveredSDU() {
	if m == nil {
		return
	}
	m.sdusDelivered.Inc()
}

func (m *Metrics) submittedSDU() {
	if m == nil {
		return
	}
	m.sdusSubmitted.Inc()
}

func (m *Metrics) sentPDU(kind string) {
	if m == nil {
		return
	}
	m.pdusSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) droppedPDU(reason string) {
	if m == nil {
		return
	}
	m.pdusDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) retx() {
	if m == nil {
		return
	}
	m.retxTotal.Inc()
}

func (m *Metrics) maxRetx() {
	if m == nil {
		return
	}
	m.maxRetxReached.Inc()
}

func (m *Metrics) setTxWindowOccupancy(n int) {
	if m == nil {
		return
	}
	m.txWindowOccup.Set(float64(n))
}

func (m *Metrics) setRxWindowOccupancy(n int) {
	if m == nil {
		return
	}
	m.rxWindowOccup.Set(float64(n))
}

func (m *Metrics) sentStatus() {
	if m == nil {
		return
	}
	m.statusSent.Inc()
}

func (m *Metrics) exhausted() {
	if m == nil {
		return
	}
	m.bufferExhausted.Inc()
}
