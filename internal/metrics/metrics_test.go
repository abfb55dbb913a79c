package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gatherValue は指定メトリクスの全系列の合計値を返す。
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetHistogram() != nil {
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestCollector_RecordResolution(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordResolution("resolved")
	c.RecordResolution("resolved")
	c.RecordResolution("placeholder")

	if got := gatherValue(t, reg, "naraigoto_profile_resolutions_total"); got != 3 {
		t.Errorf("resolutions total = %v, want 3", got)
	}
}

func TestCollector_RecordAuthAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthAttempt("login", true)
	c.RecordAuthAttempt("login", false)
	c.RecordAuthAttempt("otp_verify", true)

	if got := gatherValue(t, reg, "naraigoto_auth_attempts_total"); got != 3 {
		t.Errorf("auth attempts total = %v, want 3", got)
	}
}

func TestCollector_RecordForcedLogout(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordForcedLogout()

	if got := gatherValue(t, reg, "naraigoto_forced_logouts_total"); got != 1 {
		t.Errorf("forced logouts = %v, want 1", got)
	}
}

func TestCollector_RecordLogoFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogoFetchSuccess()
	c.RecordLogoFetchFailure("timeout")
	c.RecordLogoFetchFailure("ssrf_blocked")
	c.RecordLogoFetchLatency(150 * time.Millisecond)

	if got := gatherValue(t, reg, "naraigoto_logo_fetch_success_total"); got != 1 {
		t.Errorf("logo fetch success = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "naraigoto_logo_fetch_fail_total"); got != 2 {
		t.Errorf("logo fetch fail = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "naraigoto_logo_fetch_latency_seconds"); got != 1 {
		t.Errorf("logo fetch latency samples = %v, want 1", got)
	}
}

func TestCollector_RecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if got := gatherValue(t, reg, "naraigoto_http_status_total"); got != 3 {
		t.Errorf("http status total = %v, want 3", got)
	}
}

func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordResolution("resolved")

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	if !strings.Contains(string(body), "naraigoto_profile_resolutions_total") {
		t.Error("expected resolutions metric in scrape output")
	}
}
