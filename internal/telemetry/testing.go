package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterValue reads the current value of a plain Counter. Used by tests across
// packages to assert on metric deltas.
func CounterValue(c prometheus.Counter) float64 {
	var dm dto.Metric
	if err := c.Write(&dm); err != nil {
		return 0
	}
	return dm.GetCounter().GetValue()
}

// CounterVecValue reads the value of the CounterVec child matching labels exactly, or 0.
func CounterVecValue(cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	c, err := cv.GetMetricWith(labels)
	if err != nil {
		return 0
	}
	return CounterValue(c)
}
