package roles

import (
	"context"
	"errors"
)

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrDuplicateName      = errors.New("name already exists")
)

type Repo interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	DeletePermission(ctx context.Context, permID string) error

	// SetRolePermissions replaces the role's permission set.
	SetRolePermissions(ctx context.Context, roleID string, permIDs []string) error

	AssignToUser(ctx context.Context, userID, roleID string) error
	RemoveFromUser(ctx context.Context, userID, roleID string) error

	// ListForUser returns the names of the roles assigned to the user.
	ListForUser(ctx context.Context, userID string) ([]string, error)
}
