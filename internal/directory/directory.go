// Package directory resolves approver ids to role and permission metadata.
package directory

import (
	"context"
	"fmt"

	"approvalflow/internal/repository"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
)

// Approver is the directory view of a user
type Approver struct {
	ID          uuid.UUID
	Username    string
	Role        string
	Active      bool
	Permissions []string
}

// Can reports whether the approver holds perm
func (a *Approver) Can(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Directory looks up approvers. Unknown ids return an error wrapping workflow.ErrNotFound.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (*Approver, error)
}

type userDirectory struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

// New returns a Directory backed by the users and roles tables
func New(users repository.UserRepository, roles repository.RoleRepository) Directory {
	return &userDirectory{users: users, roles: roles}
}

func (d *userDirectory) Resolve(ctx context.Context, id uuid.UUID) (*Approver, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := d.roles.GetPermissionsByRoleName(ctx, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for role %s: %w", user.Role, err)
	}
	return &Approver{
		ID:          user.ID,
		Username:    user.Username,
		Role:        user.Role,
		Active:      user.Active,
		Permissions: perms,
	}, nil
}

// Static is a fixed in-process directory
type Static map[uuid.UUID]Approver

func (s Static) Resolve(_ context.Context, id uuid.UUID) (*Approver, error) {
	a, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", workflow.ErrNotFound, id)
	}
	return &a, nil
}
