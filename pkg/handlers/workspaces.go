package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/config"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/middleware"
	"workhub-backend/pkg/models"
	"workhub-backend/pkg/utils"
)

type WorkspacesHandler struct {
	config   *config.Config
	db       database.Store
	engine   *access.Engine
	recorder *audit.Recorder
}

func NewWorkspacesHandler(cfg *config.Config, db database.Store, engine *access.Engine, recorder *audit.Recorder) *WorkspacesHandler {
	return &WorkspacesHandler{config: cfg, db: db, engine: engine, recorder: recorder}
}

// POST /api/workspaces
func (h *WorkspacesHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Avatar      string `json:"avatar"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "Name required")
		return
	}

	ws := &models.Workspace{Name: req.Name, Description: req.Description, Avatar: req.Avatar, OwnerID: user.ID}
	if err := h.db.CreateWorkspace(r.Context(), ws); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create workspace failed")
		return
	}

	// Owner membership row. The engine also covers the bootstrap window
	// before this row lands via the implicit-owner rule.
	m := &models.WorkspaceMembership{WorkspaceID: ws.ID, UserID: user.ID, Role: models.RoleOwner}
	if err := h.db.PutWorkspaceMembership(r.Context(), m); err != nil {
		fmt.Printf("[warn] owner membership for workspace %s not written: %v\n", ws.ID, err)
	}

	audit.Warn("workspace.created", h.recorder.Record(r.Context(), ws.ID, user.ID,
		models.AuditWorkspaceCreated, "workspace", ws.ID, nil, ws, nil))

	utils.WriteCreatedResponse(w, map[string]interface{}{"workspace": ws})
}

// GET /api/workspaces
func (h *WorkspacesHandler) ListMyWorkspaces(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaces, err := h.db.ListUserWorkspaces(r.Context(), user.ID)
	if err != nil {
		fmt.Printf("[error] ListMyWorkspaces failed for user=%s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, "List workspaces failed")
		return
	}

	// Weak ETag over count + freshest update
	var maxUpdated int64
	for _, ws := range workspaces {
		if ts := ws.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"workspaces:%s:%d:%d\"", user.ID, len(workspaces), maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"workspaces": workspaces})
}

// GET /api/workspaces/members?workspace_id=
func (h *WorkspacesHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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
		RequiredWorkspaceRole: models.RoleMember,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Access check failed")
		return
	}
	if !decision.Allowed {
		writeDecisionDenied(w, decision)
		return
	}

	members, err := h.db.ListWorkspaceMembers(r.Context(), workspaceID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "List members failed")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// PUT /api/workspaces/members/role
func (h *WorkspacesHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		WorkspaceID string `json:"workspace_id"`
		UserID      string `json:"user_id"`
		Role        string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || req.UserID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id and user_id required")
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		utils.WriteValidationErrorResponse(w, "unknown role", "")
		return
	}

	decision, err := h.engine.Check(r.Context(), access.CheckRequest{
		ActorID:               user.ID,
		WorkspaceID:           req.WorkspaceID,
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

	// Granting the owner role is reserved for the workspace owner.
	if role == models.RoleOwner && !decision.EffectiveWorkspaceRole.AtLeast(models.RoleOwner) {
		utils.WriteForbiddenResponse(w, "Only the workspace owner can grant the owner role")
		return
	}

	before, err := h.db.GetWorkspaceMembership(r.Context(), req.WorkspaceID, req.UserID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "membership not found")
		return
	}

	m := &models.WorkspaceMembership{WorkspaceID: req.WorkspaceID, UserID: req.UserID, Role: role}
	if err := h.db.PutWorkspaceMembership(r.Context(), m); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Update role failed")
		return
	}

	audit.Warn("member.role_changed", h.recorder.Record(r.Context(), req.WorkspaceID, user.ID,
		models.AuditMemberRoleChanged, "workspace_membership", m.ID, before, m, nil))

	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": m})
}
