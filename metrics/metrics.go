// Package metrics keeps Prometheus metrics about device collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/util"
)

// CollectionMetrics - Counters and durations of collected devices. Safe for concurrent use.
type CollectionMetrics struct {
	registry   *prometheus.Registry
	devices    *prometheus.CounterVec
	duration   prometheus.Histogram
	interfaces prometheus.Counter
	macs       prometheus.Counter
	resolved   prometheus.Counter
	lastRun    prometheus.Gauge

	deviceSuccess    *prometheus.GaugeVec
	deviceInterfaces *prometheus.GaugeVec
	deviceResolved   *prometheus.GaugeVec
}

// Labels of the per-device gauges, with defaults for devices that never reported a hostname.
var deviceLabels = prometheus.Labels{
	"device":   "",
	"hostname": "",
}

// NewCollectionMetrics - Create the metrics in a new registry.
func NewCollectionMetrics() *CollectionMetrics {
	registry := prometheus.NewRegistry()
	namespace := common.PrometheusNamespace
	metrics := &CollectionMetrics{
		registry:   registry,
		devices:    util.NewCounterVec(registry, namespace, "collection", "devices_total", "Devices collected, by status.", []string{"status"}),
		duration:   util.NewHistogram(registry, namespace, "collection", "device_duration_seconds", "Time spent collecting a single device.", util.DurationBuckets),
		interfaces: util.NewCounter(registry, namespace, "collection", "interfaces_total", "Interfaces collected from successful devices."),
		macs:       util.NewCounter(registry, namespace, "collection", "mac_addresses_total", "MAC addresses found on interfaces."),
		resolved:   util.NewCounter(registry, namespace, "collection", "mac_addresses_resolved_total", "MAC addresses resolved to at least one IP address."),
		lastRun:    util.NewGauge(registry, namespace, "collection", "last_device_timestamp_seconds", "When the last device collection started.", nil),

		deviceSuccess:    util.NewGaugeVec(registry, namespace, "device", "success", "If the last collection of the device succeeded.", nil, deviceLabels),
		deviceInterfaces: util.NewGaugeVec(registry, namespace, "device", "interfaces", "Interfaces collected from the device.", nil, deviceLabels),
		deviceResolved:   util.NewGaugeVec(registry, namespace, "device", "mac_addresses_resolved", "MAC addresses on the device resolved to at least one IP address.", nil, deviceLabels),
	}
	// Export every status, also those never seen
	for _, status := range common.Statuses {
		metrics.devices.WithLabelValues(string(status))
	}
	return metrics
}

// Registry - The registry holding the metrics.
func (metrics *CollectionMetrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// RecordOutcome - Count a device outcome.
func (metrics *CollectionMetrics) RecordOutcome(runID string, outcome common.CollectionOutcome) {
	metrics.devices.WithLabelValues(string(outcome.Summary.Status)).Inc()
	metrics.duration.Observe(outcome.Duration.Seconds())
	if !outcome.StartTime.IsZero() {
		metrics.lastRun.Set(float64(outcome.StartTime.Unix()))
	}
	metrics.interfaces.Add(float64(len(outcome.Interfaces)))
	resolved := 0
	for _, record := range outcome.Interfaces {
		metrics.macs.Add(float64(len(record.Bindings)))
		for _, binding := range record.Bindings {
			if binding.IP != "" {
				resolved++
			}
		}
	}
	metrics.resolved.Add(float64(resolved))

	labels := util.MergeLabels(deviceLabels, prometheus.Labels{
		"device":   outcome.Summary.Address,
		"hostname": outcome.Summary.Hostname,
	})
	success := 0.0
	if outcome.Summary.Status == common.StatusSuccess {
		success = 1
	}
	metrics.deviceSuccess.With(labels).Set(success)
	metrics.deviceInterfaces.With(labels).Set(float64(len(outcome.Interfaces)))
	metrics.deviceResolved.With(labels).Set(float64(resolved))
}

// WriteTextfile - Write the metrics for the node exporter textfile collector.
func (metrics *CollectionMetrics) WriteTextfile(path string) error {
	log.WithFields(log.Fields{
		"path": path,
	}).Trace("Writing metrics textfile")
	return prometheus.WriteToTextfile(path, metrics.registry)
}
