package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/organization"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/uploads"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// Order matters: the first sentinel matched by errors.Is wins.
var serviceErrors = []errorMapping{
	{invitation.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{organization.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{orgcontext.ErrNotAMember, http.StatusForbidden, "Forbidden"},

	{invitation.ErrNotFound, http.StatusNotFound, "Invitation not found"},
	{organization.ErrNotFound, http.StatusNotFound, "Organization not found"},
	{organization.ErrMemberNotFound, http.StatusNotFound, "Member not found"},
	{uploads.ErrNotFound, http.StatusNotFound, "Upload not found"},
	{uploads.ErrEquipmentNotFound, http.StatusNotFound, "Equipment not found"},

	{invitation.ErrDuplicateInvitation, http.StatusConflict, "A pending invitation already exists for this email"},
	{invitation.ErrAlreadyMember, http.StatusConflict, "User is already a member"},
	{invitation.ErrAlreadyProcessed, http.StatusConflict, "Invitation has already been processed"},

	{invitation.ErrExpired, http.StatusGone, "Invitation has expired"},

	{invitation.ErrInvalidEmail, http.StatusBadRequest, "Invalid email address"},
	{rbac.ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
	{organization.ErrInvalidName, http.StatusBadRequest, "Invalid organization name"},
	{organization.ErrSelfModification, http.StatusBadRequest, "You cannot change your own membership"},
	{uploads.ErrEmpty, http.StatusBadRequest, "Upload is empty"},
	{uploads.ErrTooLarge, http.StatusRequestEntityTooLarge, "Upload too large"},
}

// writeServiceError answers with the status for a known sentinel and a 500
// (logged, with the generic fallback message) for anything else.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, dto.ErrorResponse{Error: m.message})
			return
		}
	}

	logger.Error(fallback, "error", err)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
}
