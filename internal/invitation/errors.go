package invitation

import "errors"

var (
	ErrForbidden           = errors.New("not allowed to manage invitations for this organization")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists for this email")
	ErrAlreadyMember       = errors.New("user is already a member of this organization")
	ErrNotFound            = errors.New("invitation not found")
	ErrExpired             = errors.New("invitation has expired")
	ErrAlreadyProcessed    = errors.New("invitation has already been processed")
	ErrInvalidEmail        = errors.New("invalid email address")
)
