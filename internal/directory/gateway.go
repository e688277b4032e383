// Package directory consumes the portal's user directory service. The
// messaging core never owns user records; it only verifies approval
// status and resolves display profiles through this gateway.
package directory

import (
	"context"
	"errors"
)

// Approval states reported by the directory service.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// ErrUserNotFound indicates the directory has no record for the id.
var ErrUserNotFound = errors.New("directory: user not found")

// Profile is the directory's view of a user.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	ApprovalStatus string `json:"approval_status"`
}

// Approved reports whether the user may act inside the messaging core.
func (p Profile) Approved() bool {
	return p.ApprovalStatus == StatusApproved
}

// Gateway resolves user profiles. Implementations must return
// ErrUserNotFound (possibly wrapped) for unknown ids.
type Gateway interface {
	GetUser(ctx context.Context, id string) (Profile, error)
	// GetUsers resolves a batch; unknown ids are simply absent from the
	// result rather than an error.
	GetUsers(ctx context.Context, ids []string) (map[string]Profile, error)
}
