package handler

import (
	"fmt"
	"net/http"
	"time"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/config"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/handlers"
	"workhub-backend/pkg/invite"
	customMiddleware "workhub-backend/pkg/middleware"
	"workhub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the serverless entry point. All API endpoints live in one Chi
// router so a single function serves the whole surface.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	db, err := database.GetStore(database.StoreConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Database error: "+err.Error())
		return
	}
	// Connection lifetime is managed by the store cache; no close here.

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)
	router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	// Serverless functions get 30s; keep a buffer for the response to flush.
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.Store) {
	engine := access.NewEngine(db)
	recorder := audit.NewRecorder(db, cfg.AuditDefaultLimit, cfg.AuditMaxLimit)
	lifecycle := invite.NewLifecycle(db, engine, recorder, cfg.InviteTTL)

	workspacesHandler := handlers.NewWorkspacesHandler(cfg, db, engine, recorder)
	projectsHandler := handlers.NewProjectsHandler(cfg, db, engine, recorder)
	invitationsHandler := handlers.NewInvitationsHandler(cfg, db, engine, recorder, lifecycle)
	auditHandler := handlers.NewAuditHandler(cfg, engine, recorder)

	// Health check
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := db.HealthCheck(); err != nil {
			status = "degraded"
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"status":      status,
			"environment": cfg.Environment,
		})
	})

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	router.Route("/api", func(r chi.Router) {
		// Everything below requires an authenticated identity.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)
			r.Use(customMiddleware.MaxBodySize(1 << 20))

			r.Route("/workspaces", func(r chi.Router) {
				r.Get("/", workspacesHandler.ListMyWorkspaces)
				r.Post("/", workspacesHandler.CreateWorkspace)
				r.Get("/members", workspacesHandler.ListMembers) // expects ?workspace_id=
				r.Put("/members/role", workspacesHandler.UpdateMemberRole)
				r.Post("/invite", invitationsHandler.InviteToWorkspace)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectsHandler.CreateProject)
				r.Get("/access", projectsHandler.CheckProjectAccess)
				r.Route("/spaces", func(r chi.Router) {
					r.Post("/", projectsHandler.CreateSpace)
					r.Post("/members", projectsHandler.AddSpaceMember)
				})
			})

			r.Route("/positions", func(r chi.Router) {
				r.Post("/", invitationsHandler.CreatePosition)
				r.Post("/{positionID}/invite", invitationsHandler.InviteToPosition)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", invitationsHandler.ListActiveInvitations) // expects ?workspace_id=
				r.Post("/accept", invitationsHandler.AcceptInvitation)
				if cfg.IsDevelopment() {
					// Production runs the sweep as a scheduled job instead.
					r.Post("/expire", invitationsHandler.ExpireInvitations)
				}
			})

			r.Get("/audit", auditHandler.QueryAuditLog)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
