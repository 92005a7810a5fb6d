package harmony

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"harmony/internal/clock"
	"harmony/internal/platform/logger"
)

// inlineRunner runs tasks on the caller's goroutine, which is the owner of
// a Virtual clock in tests.
type inlineRunner struct{}

func (inlineRunner) Do(f func()) bool { f(); return true }

var _ interface{ Routes(chi.Router) } = (*SessionHandler)(nil)

type mapSource map[string][]Feed

func (m mapSource) Feeds(id string) ([]Feed, bool) {
	f, ok := m[id]
	return f, ok
}

func newTestRouter(t *testing.T) (*chi.Mux, *Service, *clock.Virtual) {
	t.Helper()
	svc, v := newTestService(t, Config{})
	h := NewHandler(svc, inlineRunner{}, mapSource{"event-002": testFeeds()[:3]}, logger.Discard())

	r := chi.NewRouter()
	r.Route("/session", h.Routes)
	return r, svc, v
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) Status {
	t.Helper()
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestHandler_GetStatus(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := decodeStatus(t, rec)
	if st.EventID != "event-test" || st.Feeds != 5 || st.DataPlane != DataPlaneDisconnected {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestHandler_ConnectDisconnect(t *testing.T) {
	r, svc, v := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/connect", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("connect: expected 202, got %d", rec.Code)
	}
	if st := decodeStatus(t, rec); st.DataPlane != DataPlaneReconnecting {
		t.Errorf("connect should report reconnecting, got %s", st.DataPlane)
	}

	v.Advance(1300 * time.Millisecond)
	if !svc.Status().Connected {
		t.Fatal("expected connected after the delay")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/disconnect", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect: expected 200, got %d", rec.Code)
	}
	if st := decodeStatus(t, rec); st.Connected {
		t.Error("expected disconnected")
	}
}

func TestHandler_LoadEvent(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/load/event-002", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if st := decodeStatus(t, rec); st.EventID != "event-002" || st.Feeds != 3 {
		t.Errorf("unexpected status %+v", st)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/load/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_SetNetwork(t *testing.T) {
	r, svc, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"condition": "POOR"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/session/network", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.Status().Network != NetworkPoor {
		t.Errorf("expected poor network, got %s", svc.Status().Network)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/session/network", bytes.NewReader([]byte("not json"))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	body, _ = json.Marshal(map[string]string{"condition": "awful"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/session/network", bytes.NewReader(body)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
