package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	"github.com/asperus/agenda/internal/observability/metrics"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

const adminSecret = "router-secret"

func newTestRouter(t *testing.T) (http.Handler, *changefeed.Hub) {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	clock := func() time.Time { return time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC) }

	storeRepo := stores.NewInMemoryRepository(stores.Store{
		ID:            "S1",
		Name:          "Centro",
		OpeningTime:   "09:00",
		ClosingTime:   "10:00",
		Professionals: "Ana; Bea",
		Services:      "Corte",
	})
	ledger := reservations.NewInMemoryLedger()
	hub := changefeed.NewHub(logger).WithMetrics(m)
	t.Cleanup(func() { _ = hub.Close() })

	slots := availability.NewService(storeRepo, ledger, logger).WithClock(clock).WithMetrics(m)
	booking := reservations.NewService(storeRepo, ledger, logger).WithClock(clock).WithMetrics(m).WithPublisher(hub)

	cfg := &Config{
		Logger:              logger,
		StoresHandler:       stores.NewHandler(storeRepo, logger),
		AvailabilityHandler: availability.NewHandler(slots, logger),
		ReservationsHandler: reservations.NewHandler(booking, logger),
		FeedHandler:         changefeed.NewHandler(hub, logger),
		Health:              NewHealthHandler(),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret:     adminSecret,
		CORSAllowedOrigins:  []string{"https://agenda.example"},
	}
	return New(cfg), hub
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthHandlerReportsDegraded(t *testing.T) {
	h := NewHealthHandler().
		WithCheck("postgres", func(context.Context) error { return nil }).
		WithCheck("redis", func(context.Context) error { return errors.New("down") })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, rr.Body.String(), `"postgres":"ok"`)
}

func TestRouterBookingFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stores", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"S1"`)

	query := `{"store_id":"S1","date":"2024-05-01","professional":"Ana"}`
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/get_available_slots", strings.NewReader(query)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"slots":["09:00","09:30"]`)

	book := `{"store_id":"S1","date":"2024-05-01","time":"09:00","name":"Maria","contact":"maria@x.com","professional":"Ana","service":"Corte"}`
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/book_slot", strings.NewReader(book)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/get_available_slots", strings.NewReader(query)))
	assert.Contains(t, rr.Body.String(), `"slots":["09:30"]`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/book_slot", strings.NewReader(book)))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `agenda_reservations_commits_total{outcome="conflict"} 1`)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"name":"Zona Norte","professionals":"Caio","services":"Corte"}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/stores/S2", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/admin/stores/S2", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stores/S2", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/stores/S1/reservations?date=2024-05-01", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/functions/book_slot", nil)
	req.Header.Set("Origin", "https://agenda.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://agenda.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterFeedReceivesBookingChanges(t *testing.T) {
	router, hub := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/feed?store_id=S1", nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame changefeed.Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "subscribed", frame.Type)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	book := `{"store_id":"S1","date":"2024-05-01","time":"09:30","name":"Maria","contact":"maria@x.com","professional":"Bea","service":"Corte"}`
	resp, err := http.Post(srv.URL+"/functions/book_slot", "application/json", strings.NewReader(book))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "change", frame.Type)
	require.NotNil(t, frame.Event)
	assert.Equal(t, "2024-05-01", frame.Event.Day)
}
