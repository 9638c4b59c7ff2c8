package handlers

import (
	"net/http"
	"strconv"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/config"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/middleware"
	"workhub-backend/pkg/models"
	"workhub-backend/pkg/utils"
)

type AuditHandler struct {
	config   *config.Config
	engine   *access.Engine
	recorder *audit.Recorder
}

func NewAuditHandler(cfg *config.Config, engine *access.Engine, recorder *audit.Recorder) *AuditHandler {
	return &AuditHandler{config: cfg, engine: engine, recorder: recorder}
}

// GET /api/audit?workspace_id=&entity_type=&actor_id=&action=&limit=
func (h *AuditHandler) QueryAuditLog(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id required")
		return
	}

	decision, err := h.engine.Check(r.Context(), access.CheckRequest{
		ActorID:               user.ID,
		WorkspaceID:           workspaceID,
		RequiredWorkspaceRole: models.RoleAdmin,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Access check failed")
		return
	}
	if !decision.Allowed {
		writeDecisionDenied(w, decision)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.WriteValidationErrorResponse(w, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	// "user_id" is the public name of the actor filter; "actor_id" is
	// accepted as an alias matching the entry field.
	actorID := r.URL.Query().Get("user_id")
	if actorID == "" {
		actorID = r.URL.Query().Get("actor_id")
	}

	entries, err := h.recorder.Query(r.Context(), database.AuditFilter{
		WorkspaceID: workspaceID,
		EntityType:  r.URL.Query().Get("entity_type"),
		ActorID:     actorID,
		Action:      r.URL.Query().Get("action"),
		Limit:       limit,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Audit query failed")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"entries": entries, "count": len(entries)})
}
