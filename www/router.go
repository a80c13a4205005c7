package www

import (
	"net/http"

	"doseedge/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	sessions *sessionStore
	eventHub *EventHub
}

// NewRouter creates the chi router and returns it along with a stop function.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: NewEventHub(),
	}

	h.eventHub.Start()
	h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE (no auth — shop floor displays)
	r.Get("/events", h.eventHub.HandleSSE)

	// Login/logout
	r.Post("/api/login", h.apiLogin)
	r.Post("/api/logout", h.apiLogout)
	r.Get("/api/session", h.apiSession)

	r.Route("/api", func(r chi.Router) {
		// Public API (shop floor actions)
		r.Get("/status", h.apiStatus)
		r.Get("/material", h.apiActiveMaterial)
		r.Get("/weight", h.apiWeight)
		r.Post("/scan/start", h.apiScanStart)
		r.Post("/scan/stop", h.apiScanStop)
		r.Post("/refresh", h.apiRefresh)
		r.Post("/push-barcode", h.apiPushBarcode)
		r.Get("/history/doses", h.apiListDoses)
		r.Get("/history/scans", h.apiListScans)
		r.Get("/history/notices", h.apiListNotices)
		r.Get("/history/stats", h.apiDoseStats)

		// Admin API
		r.Group(func(r chi.Router) {
			r.Use(h.adminMiddleware)

			r.Post("/bypass", h.apiBypass)
			r.Put("/config/backend", h.apiUpdateBackend)
			r.Put("/config/scale", h.apiUpdateScale)
			r.Put("/config/messaging", h.apiUpdateMessaging)
			r.Post("/config/password", h.apiChangePassword)
		})
	})

	return r, func() {
		h.eventHub.Stop()
	}
}

func (h *Handlers) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			writeError(w, http.StatusUnauthorized, "admin login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
