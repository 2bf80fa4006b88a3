package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"AirNode/internal/model"
)

// MetricsSink exposes the last reading as Prometheus gauges. A gauge keeps its
// previous value when the field is absent; the absence is counted instead.
type MetricsSink struct {
	temperature prometheus.Gauge
	tvoc        prometheus.Gauge
	ch2o        prometheus.Gauge
	co2         prometheus.Gauge
	lastSeq     prometheus.Gauge
	readings    prometheus.Counter
	missing     *prometheus.CounterVec
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *MetricsSink {
	m := &MetricsSink{
		temperature: newGauge("airnode_temperature_celsius", "Probe temperature (units: degrees Celsius)"),
		tvoc:        newGauge("airnode_tvoc", "Total volatile organic compounds (units: mg/m3)"),
		ch2o:        newGauge("airnode_ch2o", "Formaldehyde (units: mg/m3)"),
		co2:         newGauge("airnode_co2", "Carbon dioxide (units: ppm)"),
		lastSeq:     newGauge("airnode_last_sequence", "Sequence id of the last dispatched reading"),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airnode_readings_total",
			Help: "Readings dispatched",
		}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airnode_missing_values_total",
			Help: "Readings where a field was unavailable",
		}, []string{"field"}),
	}
	reg.MustRegister(m.temperature, m.tvoc, m.ch2o, m.co2, m.lastSeq, m.readings, m.missing)
	return m
}

func (m *MetricsSink) Name() string { return "metrics" }

func (m *MetricsSink) Dispatch(_ context.Context, r model.Reading) error {
	m.readings.Inc()
	m.lastSeq.Set(float64(r.Seq))
	m.set("temp", m.temperature, r.Temperature)
	m.set("tvoc", m.tvoc, r.TVOC)
	m.set("ch2o", m.ch2o, r.CH2O)
	m.set("co2", m.co2, r.CO2)
	return nil
}

func (m *MetricsSink) set(field string, g prometheus.Gauge, v *float64) {
	if v == nil {
		m.missing.WithLabelValues(field).Inc()
		return
	}
	g.Set(*v)
}
