package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChat(t *testing.T) {
	before := testutil.ToFloat64(ChatRequestsTotal.WithLabelValues(ChatOutcomeOffline))
	RecordChat(ChatOutcomeOffline)
	after := testutil.ToFloat64(ChatRequestsTotal.WithLabelValues(ChatOutcomeOffline))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestRecordHTTPUnmatchedRoute(t *testing.T) {
	RecordHTTP("", http.MethodGet, http.StatusNotFound)
	if v := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404")); v < 1 {
		t.Fatalf("expected unmatched route to be recorded, got %v", v)
	}
}

func TestExposition(t *testing.T) {
	RecordCatalogReload(false)
	RecordProvider("Gemini", false)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`netfolio_catalog_reloads_total{result="error"}`,
		`netfolio_chat_provider_total{fallback="false",provider="Gemini"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
