package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordKeyEvent(t *testing.T) {
	before := testutil.ToFloat64(keyEvents.WithLabelValues("boot", "click"))
	RecordKeyEvent("boot", "click")
	RecordKeyEvent("boot", "click")

	if got := testutil.ToFloat64(keyEvents.WithLabelValues("boot", "click")) - before; got != 2 {
		t.Errorf("click delta = %v, want 2", got)
	}
}

func TestRecordAWSSStart(t *testing.T) {
	starts := testutil.ToFloat64(awssStarts)
	failures := testutil.ToFloat64(awssFailures)

	RecordAWSSStart(false)
	RecordAWSSStart(true)

	if got := testutil.ToFloat64(awssStarts) - starts; got != 2 {
		t.Errorf("starts delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(awssFailures) - failures; got != 1 {
		t.Errorf("failures delta = %v, want 1", got)
	}
}

func TestRecordReboot(t *testing.T) {
	ok := testutil.ToFloat64(reboots.WithLabelValues("ok"))
	failed := testutil.ToFloat64(reboots.WithLabelValues("error"))

	RecordReboot(nil)
	RecordReboot(errors.New("dbus unavailable"))

	if got := testutil.ToFloat64(reboots.WithLabelValues("ok")) - ok; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reboots.WithLabelValues("error")) - failed; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordAWSSHelperExit(t *testing.T) {
	ok := testutil.ToFloat64(awssHelperExits.WithLabelValues("ok"))
	failed := testutil.ToFloat64(awssHelperExits.WithLabelValues("error"))

	RecordAWSSHelperExit(nil)
	RecordAWSSHelperExit(errors.New("exit status 1"))
	RecordAWSSHelperExit(errors.New("deadline exceeded"))

	if got := testutil.ToFloat64(awssHelperExits.WithLabelValues("ok")) - ok; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(awssHelperExits.WithLabelValues("error")) - failed; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestGauges(t *testing.T) {
	SetIndicatorMode(2)
	if got := testutil.ToFloat64(indicatorMode); got != 2 {
		t.Errorf("indicator mode = %v, want 2", got)
	}

	SetCloudConnected(true)
	if got := testutil.ToFloat64(cloudConnected); got != 1 {
		t.Errorf("cloud connected = %v, want 1", got)
	}
	SetCloudConnected(false)
	if got := testutil.ToFloat64(cloudConnected); got != 0 {
		t.Errorf("cloud connected = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordReset()
	RecordIndicatorToggle()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"smartlight_awss_resets_total", "smartlight_indicator_toggles_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
