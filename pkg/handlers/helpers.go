package handlers

import (
	"errors"
	"net/http"

	"workhub-backend/pkg/access"
	"workhub-backend/pkg/invite"
	"workhub-backend/pkg/utils"
)

// inviteErrorStatus maps lifecycle error codes onto HTTP statuses. The
// mapping is mechanical; all business decisions already happened in the
// lifecycle.
var inviteErrorStatus = map[invite.ErrorCode]int{
	invite.CodeValidation:          http.StatusBadRequest,
	invite.CodeScopeRefRequired:    http.StatusBadRequest,
	invite.CodeStructuralForbidden: http.StatusBadRequest,
	invite.CodeForbidden:           http.StatusForbidden,
	invite.CodeNotFound:            http.StatusNotFound,
	invite.CodePositionNotFound:    http.StatusNotFound,
	invite.CodeInvalidToken:        http.StatusNotFound,
	invite.CodePositionOccupied:    http.StatusConflict,
	invite.CodeAlreadyMember:       http.StatusConflict,
	invite.CodeConflict:            http.StatusConflict,
	invite.CodeAlreadyAccepted:     http.StatusConflict,
	invite.CodeExpired:             http.StatusGone,
	invite.CodeRevoked:             http.StatusGone,
}

// writeLifecycleError renders a lifecycle failure. Infrastructure faults
// (no taxonomy code) become 500s without leaking details.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var e *invite.Error
	if errors.As(err, &e) {
		status, known := inviteErrorStatus[e.Code]
		if !known {
			status = http.StatusBadRequest
		}
		utils.WriteErrorResponseWithCode(w, status, string(e.Code), e.Message, "")
		return
	}
	utils.WriteInternalServerErrorResponse(w, "operation failed")
}

// writeDecisionDenied renders a denied access decision with its reason code.
func writeDecisionDenied(w http.ResponseWriter, d access.Decision) {
	switch d.Reason {
	case access.ReasonNotFound:
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, string(d.Reason), "resource not found", "")
	default:
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(d.Reason), "access denied", "")
	}
}
