/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  Structured request logs (httplog, ECS schema)
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for frontends
  5. Heartbeat:      GET /health for load balancers

ROUTE GROUPS:
  /api/schemes/*         Scheme management
  /api/employees/*       Employees and their assignments
  /api/assignments       Scheme assignment
  /api/calculations/*    Evaluation and the approval workflow
  /api/targets/*         Linked targets
  /api/key-task-maps/*   Key task maps
  /api/penalties/*       Penalties
  /api/marketing/*       Marketing bonuses
  /api/sales/*           Sales team motivation
  /api/payroll/*         Batch runs
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions configures cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = h.Logger
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
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

	r.Route("/api", func(r chi.Router) {
		r.Route("/schemes", func(r chi.Router) {
			r.Get("/", h.ListSchemes)
			r.Post("/", h.CreateScheme)
			r.Get("/{id}", h.GetScheme)
			r.Delete("/{id}", h.RetireScheme)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}/assignments", h.GetAssignments)
		})

		r.Post("/assignments", h.CreateAssignment)

		r.Route("/calculations", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/evaluate", h.Evaluate)
			r.Get("/summary", h.Summary)
			r.Get("/{id}", h.GetCalculation)
			r.Post("/{id}/approve", h.ApproveCalculation)
			r.Post("/{id}/pay", h.PayCalculation)
			r.Post("/{id}/cancel", h.CancelCalculation)
		})

		r.Route("/targets", func(r chi.Router) {
			r.Post("/", h.UpsertTarget)
			r.Get("/{id}/completion", h.TargetCompletion)
		})

		r.Route("/key-task-maps", func(r chi.Router) {
			r.Post("/", h.CreateKeyTaskMap)
			r.Get("/{id}/bonus", h.KeyTaskBonus)
			r.Post("/{id}/tasks/{taskID}/complete", h.CompleteKeyTask)
		})

		r.Post("/requirements", h.CompleteRequirement)

		r.Route("/penalties", func(r chi.Router) {
			r.Post("/", h.CreatePenalty)
			r.Get("/summary", h.PenaltySummary)
			r.Post("/{id}/status", h.TransitionPenalty)
		})

		r.Route("/marketing", func(r chi.Router) {
			r.Post("/split", h.MarketingSplit)
			r.Post("/bonus", h.MarketingBonus)
		})

		r.Post("/sales/team", h.SalesTeam)

		r.Route("/payroll", func(r chi.Router) {
			r.Post("/run", h.TriggerPayroll)
			r.Get("/runs", h.ListPayrollRuns)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
