package database

import (
	"context"
	"fmt"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"

	"github.com/google/uuid"
)

var defaultPermissions = []model.Permission{
	{Code: model.PermApprovalsRead, Name: "View approval requests", Group: "approvals"},
	{Code: model.PermApprovalsCreate, Name: "Create and manage own requests", Group: "approvals"},
	{Code: model.PermApprovalsDecide, Name: "Approve, reject and request revisions", Group: "approvals"},
	{Code: model.PermApprovalsConsume, Name: "Mark final outcomes consumed", Group: "approvals"},
	{Code: model.PermAuditRead, Name: "Read audit history", Group: "audit"},
}

var defaultRoles = []struct {
	role  model.Role
	perms []string
}{
	{
		role: model.Role{Name: model.RoleAdmin, Description: "Full access", IsSystem: true},
		perms: []string{model.PermApprovalsRead, model.PermApprovalsCreate, model.PermApprovalsDecide,
			model.PermApprovalsConsume, model.PermAuditRead},
	},
	{
		role:  model.Role{Name: model.RoleReviewer, Description: "Decides on requests in their chain", IsSystem: true},
		perms: []string{model.PermApprovalsRead, model.PermApprovalsCreate, model.PermApprovalsDecide},
	},
	{
		role:  model.Role{Name: model.RoleEngineer, Description: "Opens requests", IsSystem: true},
		perms: []string{model.PermApprovalsRead, model.PermApprovalsCreate},
	},
}

// SeedRBAC makes sure the built-in permissions and roles exist. It is idempotent.
func SeedRBAC(ctx context.Context, tx repository.TransactionManager, roles repository.RoleRepository) error {
	return tx.RunInTx(ctx, func(txCtx context.Context) error {
		ids := make(map[string]uuid.UUID, len(defaultPermissions))
		for _, p := range defaultPermissions {
			perm := p
			if err := roles.FindOrCreatePermission(txCtx, &perm); err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", p.Code, err)
			}
			ids[perm.Code] = perm.ID
		}

		for _, r := range defaultRoles {
			role := r.role
			if err := roles.FindOrCreateRole(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role %s: %w", r.role.Name, err)
			}
			permIDs := make([]uuid.UUID, 0, len(r.perms))
			for _, code := range r.perms {
				permIDs = append(permIDs, ids[code])
			}
			if err := roles.AssociatePermissions(txCtx, role.ID, permIDs); err != nil {
				return fmt.Errorf("failed to grant permissions to %s: %w", r.role.Name, err)
			}
		}
		return nil
	})
}
