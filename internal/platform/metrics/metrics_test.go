package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRequestMiddleware_CountsByRoute(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/catalog/events/{event_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, p := range []string{"/catalog/events/a", "/catalog/events/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := scrape(t, m, nil)
	if !strings.Contains(out, `harmony_requests_total{route="/catalog/events/{event_id}"} 2`) {
		t.Errorf("expected 2 requests on the route pattern:\n%s", out)
	}
	if !strings.Contains(out, "harmony_errors_total 3") {
		t.Errorf("expected 3 errors (two 404s and one unmatched):\n%s", out)
	}
}

func TestHandler_RefreshesGauges(t *testing.T) {
	m := New()
	m.IncEventsPublished("harmony.pulse")
	m.SetDataPlaneConnected(true)

	out := scrape(t, m, func() {
		m.SetSubscriptions(7)
		m.SetViewers(2)
	})

	for _, want := range []string{
		`harmony_events_published_total{kind="harmony.pulse"} 1`,
		"harmony_bus_subscriptions 7",
		"harmony_ws_viewers 2",
		"harmony_dataplane_connected 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}
