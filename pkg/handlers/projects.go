package handlers

import (
	"errors"
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

type ProjectsHandler struct {
	config   *config.Config
	db       database.Store
	engine   *access.Engine
	recorder *audit.Recorder
}

func NewProjectsHandler(cfg *config.Config, db database.Store, engine *access.Engine, recorder *audit.Recorder) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, db: db, engine: engine, recorder: recorder}
}

// POST /api/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		WorkspaceID string  `json:"workspace_id"`
		SpaceID     *string `json:"space_id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "workspace_id and name required")
		return
	}

	decision, err := h.engine.Check(r.Context(), access.CheckRequest{
		ActorID:               user.ID,
		WorkspaceID:           req.WorkspaceID,
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

	if req.SpaceID != nil {
		space, err := h.db.GetProjectSpace(r.Context(), *req.SpaceID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.WriteNotFoundResponse(w, "space not found")
				return
			}
			utils.WriteInternalServerErrorResponse(w, "Load space failed")
			return
		}
		if space.WorkspaceID != req.WorkspaceID {
			utils.WriteNotFoundResponse(w, "space not found")
			return
		}
	}

	ownerID := user.ID
	p := &models.Project{
		WorkspaceID: req.WorkspaceID,
		SpaceID:     req.SpaceID,
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: user.ID,
		OwnerID:     &ownerID,
	}
	if err := h.db.CreateProject(r.Context(), p); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create project failed")
		return
	}

	// Explicit owner row so the creator never relies on the fallback chain.
	m := &models.ProjectMembership{ProjectID: p.ID, UserID: user.ID, Role: models.RoleOwner}
	if err := h.db.PutProjectMembership(r.Context(), m); err != nil {
		audit.Warn("project owner membership", err)
	}

	audit.Warn("project.created", h.recorder.Record(r.Context(), req.WorkspaceID, user.ID,
		models.AuditProjectCreated, "project", p.ID, nil, p, nil))

	utils.WriteCreatedResponse(w, map[string]interface{}{"project": p})
}

// POST /api/projects/spaces
func (h *ProjectsHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		WorkspaceID string `json:"workspace_id"`
		Name        string `json:"name"`
		Visibility  string `json:"visibility"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "workspace_id and name required")
		return
	}
	visibility := models.SpaceVisibility(req.Visibility)
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityTargeted {
		utils.WriteValidationErrorResponse(w, "unknown visibility", "")
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

	s := &models.ProjectSpace{WorkspaceID: req.WorkspaceID, Name: req.Name, Visibility: visibility}
	if err := h.db.CreateProjectSpace(r.Context(), s); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create space failed")
		return
	}

	audit.Warn("space.created", h.recorder.Record(r.Context(), req.WorkspaceID, user.ID,
		models.AuditSpaceCreated, "project_space", s.ID, nil, s, nil))

	utils.WriteCreatedResponse(w, map[string]interface{}{"space": s})
}

// POST /api/projects/spaces/members
func (h *ProjectsHandler) AddSpaceMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		SpaceID string `json:"space_id"`
		UserID  string `json:"user_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.SpaceID == "" || req.UserID == "" {
		utils.WriteBadRequestResponse(w, "space_id and user_id required")
		return
	}

	space, err := h.db.GetProjectSpace(r.Context(), req.SpaceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "space not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Load space failed")
		return
	}

	decision, err := h.engine.Check(r.Context(), access.CheckRequest{
		ActorID:               user.ID,
		WorkspaceID:           space.WorkspaceID,
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

	// The grantee must already belong to the workspace.
	if _, err := h.db.GetWorkspaceMembership(r.Context(), space.WorkspaceID, req.UserID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "user is not a workspace member")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Load membership failed")
		return
	}

	m := &models.ProjectSpaceMembership{SpaceID: req.SpaceID, UserID: req.UserID}
	if err := h.db.PutProjectSpaceMembership(r.Context(), m); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Add space member failed")
		return
	}

	audit.Warn("space.member_added", h.recorder.Record(r.Context(), space.WorkspaceID, user.ID,
		models.AuditSpaceMemberAdded, "project_space_membership", m.ID, nil, m, nil))

	utils.WriteCreatedResponse(w, map[string]interface{}{"membership": m})
}

// GET /api/projects/access?workspace_id=&project_id=&role=
//
// Exposes the decision itself so clients can gate UI without guessing:
// the response carries the reason code and the effective roles.
func (h *ProjectsHandler) CheckProjectAccess(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workspaceID := r.URL.Query().Get("workspace_id")
	projectID := r.URL.Query().Get("project_id")
	if workspaceID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id required")
		return
	}
	required := models.RoleViewer
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			utils.WriteValidationErrorResponse(w, "unknown role", "")
			return
		}
		required = role
	}

	decision, err := h.engine.Check(r.Context(), access.CheckRequest{
		ActorID:               user.ID,
		WorkspaceID:           workspaceID,
		RequiredWorkspaceRole: models.RoleViewer,
		ProjectID:             projectID,
		RequiredProjectRole:   required,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Access check failed")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"decision": decision})
}
