package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("insufficient role")
)

// Principal is what the Auth gateway resolves a bearer token into. The
// gateway itself is an external collaborator specified only by this
// interface's shape (spec §1) — internal/authn adapts real token formats
// into it.
type Principal struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
}
