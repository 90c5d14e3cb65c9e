package roles

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu        sync.RWMutex
	roles     map[string]Role
	perms     map[string]Permission
	rolePerms map[string][]string
	userRoles map[string]map[string]bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		roles:     make(map[string]Role),
		perms:     make(map[string]Permission),
		rolePerms: make(map[string][]string),
		userRoles: make(map[string]map[string]bool),
	}
}

func (r *MemoryRepo) CreateRole(ctx context.Context, role Role) (Role, error) {
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return Role{}, ErrDuplicateName
		}
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	role.Permissions = []Permission{}
	r.roles[role.ID] = role
	return role, nil
}

func (r *MemoryRepo) GetRole(ctx context.Context, roleID string) (Role, error) {
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roleLocked(roleID)
}

func (r *MemoryRepo) roleLocked(roleID string) (Role, error) {
	role, ok := r.roles[roleID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	role.Permissions = []Permission{}
	for _, permID := range r.rolePerms[roleID] {
		if perm, ok := r.perms[permID]; ok {
			role.Permissions = append(role.Permissions, perm)
		}
	}
	sort.Slice(role.Permissions, func(i, j int) bool {
		return role.Permissions[i].Name < role.Permissions[j].Name
	})
	return role, nil
}

func (r *MemoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, 0, len(r.roles))
	for id := range r.roles {
		role, err := r.roleLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.roles[role.ID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	for id, other := range r.roles {
		if id != role.ID && other.Name == role.Name {
			return Role{}, ErrDuplicateName
		}
	}
	existing.Name = role.Name
	existing.Description = role.Description
	existing.UpdatedAt = time.Now().UTC()
	r.roles[role.ID] = existing
	return r.roleLocked(role.ID)
}

func (r *MemoryRepo) DeleteRole(ctx context.Context, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	delete(r.roles, roleID)
	delete(r.rolePerms, roleID)
	for _, assigned := range r.userRoles {
		delete(assigned, roleID)
	}
	return nil
}

func (r *MemoryRepo) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return Permission{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.perms {
		if existing.Name == perm.Name {
			return Permission{}, ErrDuplicateName
		}
	}
	perm.CreatedAt = time.Now().UTC()
	r.perms[perm.ID] = perm
	return perm, nil
}

func (r *MemoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Permission, 0, len(r.perms))
	for _, perm := range r.perms {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) DeletePermission(ctx context.Context, permID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[permID]; !ok {
		return ErrPermissionNotFound
	}
	delete(r.perms, permID)
	for roleID, permIDs := range r.rolePerms {
		kept := permIDs[:0]
		for _, id := range permIDs {
			if id != permID {
				kept = append(kept, id)
			}
		}
		r.rolePerms[roleID] = kept
	}
	return nil
}

func (r *MemoryRepo) SetRolePermissions(ctx context.Context, roleID string, permIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	for _, permID := range permIDs {
		if _, ok := r.perms[permID]; !ok {
			return ErrPermissionNotFound
		}
	}
	r.rolePerms[roleID] = append([]string(nil), permIDs...)
	return nil
}

func (r *MemoryRepo) AssignToUser(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	if r.userRoles[userID] == nil {
		r.userRoles[userID] = make(map[string]bool)
	}
	r.userRoles[userID][roleID] = true
	return nil
}

func (r *MemoryRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	delete(r.userRoles[userID], roleID)
	return nil
}

func (r *MemoryRepo) ListForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := []string{}
	for roleID := range r.userRoles[userID] {
		if role, ok := r.roles[roleID]; ok {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
