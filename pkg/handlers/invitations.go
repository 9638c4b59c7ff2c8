package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/audit"
	"workhub-backend/pkg/config"
	"workhub-backend/pkg/database"
	"workhub-backend/pkg/invite"
	"workhub-backend/pkg/middleware"
	"workhub-backend/pkg/models"
	"workhub-backend/pkg/utils"
)

type InvitationsHandler struct {
	config    *config.Config
	db        database.Store
	engine    *access.Engine
	recorder  *audit.Recorder
	lifecycle *invite.Lifecycle
}

func NewInvitationsHandler(cfg *config.Config, db database.Store, engine *access.Engine, recorder *audit.Recorder, lifecycle *invite.Lifecycle) *InvitationsHandler {
	return &InvitationsHandler{config: cfg, db: db, engine: engine, recorder: recorder, lifecycle: lifecycle}
}

// invitationResponse is the one place a token ever leaves the backend: the
// creation response to the issuer. Every other read path serializes the model,
// which strips the token.
type invitationResponse struct {
	ID          string      `json:"id"`
	WorkspaceID string      `json:"workspace_id"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	PositionID  *string     `json:"position_id,omitempty"`
	Token       string      `json:"token"`
	InviteURL   string      `json:"invite_url"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   string      `json:"created_by"`
}

func (h *InvitationsHandler) issuedResponse(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		ID:          inv.ID,
		WorkspaceID: inv.WorkspaceID,
		Email:       inv.Email,
		Role:        inv.Role,
		PositionID:  inv.PositionID,
		Token:       inv.Token,
		InviteURL:   strings.TrimRight(h.config.BaseURL, "/") + "/invite/" + inv.Token,
		ExpiresAt:   inv.ExpiresAt,
		CreatedAt:   inv.CreatedAt,
		CreatedBy:   inv.IssuerID,
	}
}

// POST /api/positions
func (h *InvitationsHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		WorkspaceID string `json:"workspace_id"`
		Title       string `json:"title"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || strings.TrimSpace(req.Title) == "" {
		utils.WriteBadRequestResponse(w, "workspace_id and title required")
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

	p := &models.OrgPosition{WorkspaceID: req.WorkspaceID, Title: req.Title}
	if err := h.db.CreatePosition(r.Context(), p); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create position failed")
		return
	}

	audit.Warn("position.created", h.recorder.Record(r.Context(), req.WorkspaceID, user.ID,
		models.AuditPositionCreated, "org_position", p.ID, nil, p, nil))

	utils.WriteCreatedResponse(w, map[string]interface{}{"position": p})
}

// POST /api/positions/{positionID}/invite
//
// The workspace is derived from the position itself; the caller cannot name a
// different one.
func (h *InvitationsHandler) InviteToPosition(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	positionID := chi.URLParam(r, "positionID")
	if positionID == "" {
		utils.WriteBadRequestResponse(w, "position id required")
		return
	}
	var req struct {
		Email            string  `json:"email"`
		Role             string  `json:"role"`
		ViewerScopeType  *string `json:"viewer_scope_type"`
		ViewerScopeRefID *string `json:"viewer_scope_ref_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		utils.WriteValidationErrorResponse(w, "unknown role", "")
		return
	}

	pos, err := h.db.GetPosition(r.Context(), positionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "position not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Load position failed")
		return
	}

	issueReq := invite.IssueRequest{
		IssuerID:         user.ID,
		WorkspaceID:      pos.WorkspaceID,
		Email:            req.Email,
		Role:             role,
		PositionID:       &positionID,
		ViewerScopeRefID: req.ViewerScopeRefID,
	}
	if req.ViewerScopeType != nil {
		t := models.ViewerScopeType(*req.ViewerScopeType)
		issueReq.ViewerScopeType = &t
	}

	inv, err := h.lifecycle.Issue(r.Context(), issueReq)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": h.issuedResponse(inv)})
}

// POST /api/workspaces/invite
func (h *InvitationsHandler) InviteToWorkspace(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		WorkspaceID      string  `json:"workspace_id"`
		Email            string  `json:"email"`
		Role             string  `json:"role"`
		ViewerScopeType  *string `json:"viewer_scope_type"`
		ViewerScopeRefID *string `json:"viewer_scope_ref_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id required")
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		utils.WriteValidationErrorResponse(w, "unknown role", "")
		return
	}

	issueReq := invite.IssueRequest{
		IssuerID:         user.ID,
		WorkspaceID:      req.WorkspaceID,
		Email:            req.Email,
		Role:             role,
		ViewerScopeRefID: req.ViewerScopeRefID,
	}
	if req.ViewerScopeType != nil {
		t := models.ViewerScopeType(*req.ViewerScopeType)
		issueReq.ViewerScopeType = &t
	}

	inv, err := h.lifecycle.Issue(r.Context(), issueReq)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": h.issuedResponse(inv)})
}

// POST /api/invitations/accept
func (h *InvitationsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.Token == "" {
		utils.WriteBadRequestResponse(w, "token required")
		return
	}

	membership, err := h.lifecycle.Redeem(r.Context(), req.Token, user.ID)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": membership})
}

// GET /api/invitations?workspace_id=
func (h *InvitationsHandler) ListActiveInvitations(w http.ResponseWriter, r *http.Request) {
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

	invitations, err := h.lifecycle.ListActive(r.Context(), workspaceID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "List invitations failed")
		return
	}
	// models.Invitation strips the token on marshal.
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invitations})
}

// POST /api/invitations/expire — development only; wired behind an env check
// in the router. Production expiry runs as a scheduled job hitting the same
// lifecycle method.
func (h *InvitationsHandler) ExpireInvitations(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireUser(r.Context()); err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	n, err := h.lifecycle.Expire(r.Context(), time.Now())
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Expire sweep failed")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"expired": n})
}
