// Package metrics provides Prometheus metrics for the smart light daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartlight"

var (
	keyEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "button",
		Name:      "key_events_total",
		Help:      "Key events received, by key code and value",
	}, []string{"code", "value"})

	awssStarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "awss",
		Name:      "starts_total",
		Help:      "Provisioning start requests",
	})

	awssFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "awss",
		Name:      "start_failures_total",
		Help:      "Provisioning starts that returned an error",
	})

	awssHelperExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "awss",
		Name:      "helper_exits_total",
		Help:      "Provisioning helper exits, by result",
	}, []string{"result"})

	resets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "awss",
		Name:      "resets_total",
		Help:      "Factory resets requested",
	})

	reboots = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "reboots_total",
		Help:      "Reboot attempts, by result",
	}, []string{"result"})

	indicatorMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "indicator",
		Name:      "mode",
		Help:      "Current indicator mode (0 steady, 1 ok, 2 fail)",
	})

	indicatorToggles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indicator",
		Name:      "toggles_total",
		Help:      "LED output toggles",
	})

	cloudConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cloud",
		Name:      "connected",
		Help:      "1 while the cloud session is connected",
	})
)

// RecordKeyEvent counts a key event.
func RecordKeyEvent(code, value string) {
	keyEvents.WithLabelValues(code, value).Inc()
}

// RecordAWSSStart counts a provisioning start; failed marks a start error.
func RecordAWSSStart(failed bool) {
	awssStarts.Inc()
	if failed {
		awssFailures.Inc()
	}
}

// RecordAWSSHelperExit counts a finished provisioning helper.
func RecordAWSSHelperExit(err error) {
	awssHelperExits.WithLabelValues(result(err)).Inc()
}

// RecordReset counts a factory reset request.
func RecordReset() {
	resets.Inc()
}

// RecordReboot counts a reboot attempt.
func RecordReboot(err error) {
	reboots.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// SetIndicatorMode records the indicator mode as its numeric value.
func SetIndicatorMode(mode int) {
	indicatorMode.Set(float64(mode))
}

// RecordIndicatorToggle counts an LED toggle.
func RecordIndicatorToggle() {
	indicatorToggles.Inc()
}

// SetCloudConnected records the cloud session state.
func SetCloudConnected(connected bool) {
	if connected {
		cloudConnected.Set(1)
		return
	}
	cloudConnected.Set(0)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
