package licensing

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts verification verdicts.
type Metrics struct {
	verdicts *prometheus.CounterVec
}

// NewMetrics registers the licensing collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licensehub_verifications_total",
		Help: "License verification calls partitioned by outcome.",
	}, []string{"outcome"})
	registerer.MustRegister(verdicts)
	return &Metrics{verdicts: verdicts}
}

func (m *Metrics) observe(v Verdict) {
	if m == nil {
		return
	}
	outcome := "authorized"
	if !v.Authorized {
		outcome = string(v.Reason)
	}
	m.verdicts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues("error").Inc()
}
