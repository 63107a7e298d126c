package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/asperus/agenda/internal/availability"
	"github.com/asperus/agenda/internal/changefeed"
	httpmiddleware "github.com/asperus/agenda/internal/http/middleware"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	StoresHandler       *stores.Handler
	AvailabilityHandler *availability.Handler
	ReservationsHandler *reservations.Handler
	FeedHandler         *changefeed.Handler
	Health              *HealthHandler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int
	RequestTimeout      time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler()
	}
	r.Group(func(public chi.Router) {
		public.Get("/health", health.ServeHTTP)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		// long-lived socket; no timeout or rate limit
		if cfg.FeedHandler != nil {
			public.Get("/feed", cfg.FeedHandler.HandleWebSocket)
		}
	})

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		if cfg.StoresHandler != nil {
			api.Get("/stores", cfg.StoresHandler.List)
			api.Get("/stores/{storeID}", cfg.StoresHandler.Get)
		}
		if cfg.AvailabilityHandler != nil {
			api.Get("/stores/{storeID}/slots", cfg.AvailabilityHandler.GetDay)
			api.Get("/stores/{storeID}/availability", cfg.AvailabilityHandler.GetWindow)
			api.Post("/functions/get_available_slots", cfg.AvailabilityHandler.GetAvailableSlots)
		}
		if cfg.ReservationsHandler != nil {
			api.Post("/functions/book_slot", cfg.ReservationsHandler.BookSlot)
		}
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.StoresHandler != nil {
			admin.Put("/stores/{storeID}", cfg.StoresHandler.Put)
		}
		if cfg.ReservationsHandler != nil {
			admin.Get("/stores/{storeID}/reservations", cfg.ReservationsHandler.ListByDay)
		}
	})

	return r
}
