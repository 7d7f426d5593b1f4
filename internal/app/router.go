package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rkwebforge/tracklet/internal/apperrors"
	"github.com/rkwebforge/tracklet/internal/audit"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/boards"
	"github.com/rkwebforge/tracklet/internal/config"
	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
	"github.com/rkwebforge/tracklet/internal/tasks"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))

	// Services shared across routes
	auditor := audit.NewWriter(pool)
	auditReader := audit.NewReader(pool)
	orgSvc := orgs.NewService(pool, cfg.BaseURL)
	projSvc := projects.NewService(pool, orgSvc)
	taskSvc := tasks.NewService(pool, projSvc)
	boardSvc := boards.NewService(pool, projSvc)

	// Signup redeems an invitation as part of the same flow
	redeemInvite := func(ctx context.Context, token string, userID uuid.UUID) error {
		org, err := orgSvc.RedeemInvite(ctx, token, userID)
		if err != nil {
			return err
		}
		if err := auditor.Log(ctx, audit.LogParams{
			OrgID:       &org.ID,
			ActorUserID: &userID,
			Action:      audit.EventOrgInviteRedeemed,
			Meta:        map[string]interface{}{"via": "signup"},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}
		return nil
	}

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/csrf", auth.HandleCSRFToken(isProduction))

		r.Group(func(r chi.Router) {
			r.Use(CSRFMiddleware)
			r.With(LoginRateLimitMiddleware(cfg.RateLimitRPM)).
				Post("/signup", auth.HandleSignup(pool, redeemInvite, cfg.JWTSecret, cfg.SessionDays, isProduction))
			r.With(LoginRateLimitMiddleware(cfg.RateLimitRPM)).
				Post("/login", auth.HandleLogin(pool, cfg.JWTSecret, cfg.SessionDays, isProduction))
			r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout())
		})
	})

	// API routes - Invitation lookup and acceptance. Lookup is public so the
	// signup page can describe the invitation before an account exists.
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/{token}", orgs.HandleShowInvite(orgSvc))

		r.Group(func(r chi.Router) {
			r.Use(CSRFMiddleware)
			r.Use(auth.RequireAuth)
			r.Post("/{token}/accept", orgs.HandleAcceptInvite(orgSvc, auditor))
		})
	})

	// API routes - Organizations (require authentication)
	r.Route("/api/v1/orgs", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		// Organization CRUD
		r.Post("/", orgs.HandleCreate(orgSvc, auditor))
		r.Get("/", orgs.HandleList(orgSvc))
		r.Get("/{org_id}", orgs.HandleGet(orgSvc))
		r.Put("/{org_id}", orgs.HandleUpdate(orgSvc, auditor))
		r.Delete("/{org_id}", orgs.HandleDelete(orgSvc, auditor))

		// Organization members
		r.Get("/{org_id}/members", orgs.HandleListMembers(orgSvc))
		r.Post("/{org_id}/members", orgs.HandleAddMember(orgSvc, auditor))
		r.Put("/{org_id}/members/{user_id}", orgs.HandleUpdateMemberRole(orgSvc, auditor))
		r.Delete("/{org_id}/members/{user_id}", orgs.HandleRemoveMember(orgSvc, auditor))

		// Invitations
		r.Post("/{org_id}/invites", orgs.HandleCreateInvite(orgSvc, auditor))
		r.Get("/{org_id}/invites", orgs.HandleListInvites(orgSvc))
		r.Delete("/{org_id}/invites/{invite_id}", orgs.HandleRevokeInvite(orgSvc, auditor))

		// Audit trail
		r.Get("/{org_id}/audit", orgs.HandleListAudit(orgSvc, auditReader))

		// Projects under organization
		r.Post("/{org_id}/projects", projects.HandleCreate(projSvc, auditor))
		r.Get("/{org_id}/projects", projects.HandleList(projSvc))
	})

	// API routes - Projects (require authentication)
	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Get("/{project_id}", projects.HandleGet(projSvc))
		r.Put("/{project_id}", projects.HandleUpdate(projSvc))
		r.Delete("/{project_id}", projects.HandleDelete(projSvc, auditor))

		// Project members
		r.Get("/{project_id}/members", projects.HandleListMembers(projSvc))
		r.Post("/{project_id}/members", projects.HandleAddMember(projSvc))
		r.Put("/{project_id}/members/{user_id}", projects.HandleUpdateMemberRole(projSvc))
		r.Delete("/{project_id}/members/{user_id}", projects.HandleRemoveMember(projSvc))

		// Tasks under project
		r.Post("/{project_id}/tasks", tasks.HandleCreate(taskSvc, auditor))
		r.Get("/{project_id}/tasks", tasks.HandleList(taskSvc))

		// Boards under project
		r.Post("/{project_id}/boards", boards.HandleCreate(boardSvc))
		r.Get("/{project_id}/boards", boards.HandleList(boardSvc))
	})

	// API routes - Tasks (require authentication)
	r.Route("/api/v1/tasks", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Get("/{task_id}", tasks.HandleGet(taskSvc))
		r.Put("/{task_id}", tasks.HandleUpdate(taskSvc))
		r.Delete("/{task_id}", tasks.HandleDelete(taskSvc, auditor))
		r.Put("/{task_id}/assignee", tasks.HandleAssign(taskSvc))
		r.Post("/{task_id}/comments", tasks.HandleAddComment(taskSvc))
		r.Get("/{task_id}/comments", tasks.HandleListComments(taskSvc))
	})

	// API routes - Boards (require authentication)
	r.Route("/api/v1/boards", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Get("/{board_id}", boards.HandleGet(boardSvc))
		r.Delete("/{board_id}", boards.HandleDelete(boardSvc))
		r.Post("/{board_id}/columns", boards.HandleAddColumn(boardSvc))
		r.Delete("/columns/{column_id}", boards.HandleRemoveColumn(boardSvc))
	})

	return r
}

// handleHealthz returns a simple liveness check
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
