/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: Structured request logging (httplog, ECS schema)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the malla frontend
  5. Heartbeat:     GET /health for load balancers

ROUTE GROUPS:
  /api/employees/*   Employees (salary, surcharge flag)
  /api/shifts/*      Turnos
  /api/holidays/*    Company holidays + statutory calendar
  /api/config/*      Versioned payroll parametros
  /api/malla/*       Month grids and day edits
  /api/calculate     Day preview
  /api/recalculate   Month batch
  /api/records/*     Computed days, history, closing
  /api/payroll/*     Summaries

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger         *slog.Logger
	LogLevel       slog.Level
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/health"))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.PutShift)
			r.Get("/{id}", h.GetShift)
			r.Delete("/{id}", h.DeleteShift)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Get("/calendar/{year}", h.HolidayCalendar)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.GetConfig)
			r.Put("/", h.PutConfig)
			r.Get("/versions", h.ListConfigVersions)
		})

		r.Route("/malla/{employeeID}", func(r chi.Router) {
			r.Get("/{year}/{month}", h.GetGrid)
			r.Put("/{year}/{month}", h.PutGrid)
			r.Put("/days/{date}", h.SetGridDay)
		})

		r.Post("/calculate", h.Calculate)
		r.Post("/recalculate", h.Recalculate)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Get("/{employeeID}/{date}/history", h.RecordHistory)
			r.Get("/{employeeID}/{date}/recompute", h.RecomputeRecord)
			r.Post("/{employeeID}/{date}/close", h.CloseRecord)
		})

		r.Get("/payroll/summary", h.PayrollSummary)
	})

	return r
}
