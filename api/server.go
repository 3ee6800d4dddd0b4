/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route table. This is the
  wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for the frontend
  4. Request logging via zap

ROUTE GROUPS:
  /api/ai-record/*             Insemination records
  /api/pregnancy-diagnosis/*   Diagnosis transitions and calf registration
  /api/cow/*                   Animal registry
  /api/feedlot/*               Pen placement
  /api/transponder/*           Tag placement
  /api/semen/*                 Inventory
  /api/inseminator, /api/color Lookups
  /api/system-setting/*        Thresholds and the manual cron trigger

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(requestLogger(h.Log))

	r.Route("/api", func(r chi.Router) {
		r.Route("/ai-record", func(r chi.Router) {
			r.Post("/", h.CreateAiRecord)
			r.Get("/all", h.ListAiRecords)
			r.Get("/next-code", h.NextAiCode)
			r.Get("/dam-ai-record", h.DamAiRecords)
			r.Get("/dam-ai-count/{damId}", h.DamAiCount)
			r.Get("/{id}/detail", h.AiRecordDetail)
			r.Put("/{id}/update-status", h.UpdateAiStatus)
		})

		r.Route("/pregnancy-diagnosis", func(r chi.Router) {
			r.Get("/all", h.ListPregnancyDiagnoses)
			r.Put("/{id}/update-status", h.UpdatePdStatus)
			r.Post("/{id}/register-calf", h.RegisterCalf)
		})

		r.Route("/cow", func(r chi.Router) {
			r.Post("/", h.CreateCow)
			r.Post("/dam", h.CreateDam)
			r.Get("/all", h.ListCows)
			r.Get("/dams", h.ListDams)
			r.Get("/{id}/detail", h.CowDetail)
		})

		r.Route("/feedlot", func(r chi.Router) {
			r.Get("/all", h.ListFeedlots)
			r.Post("/", h.CreateFeedlot)
			r.Put("/assign/{feedlotId}/{cowId}", h.AssignFeedlot)
			r.Put("/assign-bulk/{feedlotId}", h.AssignFeedlotBulk)
			r.Put("/unassign/{cowId}", h.UnassignFeedlot)
		})

		r.Route("/transponder", func(r chi.Router) {
			r.Get("/all", h.ListTransponders)
			r.Get("/available", h.ListAvailableTransponders)
			r.Post("/", h.CreateTransponder)
			r.Put("/assign/{transponderId}/{cowId}", h.AssignTransponder)
			r.Put("/unassign/{transponderId}", h.UnassignTransponder)
		})

		r.Route("/semen", func(r chi.Router) {
			r.Get("/all", h.ListSemens)
			r.Post("/", h.CreateSemen)
			r.Put("/{id}", h.UpdateSemen)
			r.Put("/{id}/toggle-bull", h.ToggleBull)
		})

		r.Route("/inseminator", func(r chi.Router) {
			r.Get("/all", h.ListInseminators)
			r.Post("/", h.CreateInseminator)
		})

		r.Route("/color", func(r chi.Router) {
			r.Get("/all", h.ListColors)
			r.Post("/", h.CreateColor)
		})

		r.Route("/system-setting", func(r chi.Router) {
			r.Get("/all", h.ListSettings)
			r.Post("/", h.SaveSetting)
			r.Put("/{id}", h.UpdateSetting)
			r.Post("/run-cron", h.RunAgingJob)
			r.Get("/aging-runs", h.ListAgingRuns)
		})
	})

	return r
}

// requestLogger logs one line per request with method, path, status and
// duration.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
