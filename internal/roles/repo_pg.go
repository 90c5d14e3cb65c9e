package roles

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) CreateRole(ctx context.Context, role Role) (Role, error) {
	const query = `
INSERT INTO roles (id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, role.ID, role.Name, role.Description).
		Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	role.Permissions = []Permission{}
	return role, nil
}

func (r *PGRepo) GetRole(ctx context.Context, roleID string) (Role, error) {
	const query = `
SELECT id, name, description, created_at, updated_at
FROM roles
WHERE id = $1`
	var role Role
	err := r.DB.QueryRowContext(ctx, query, roleID).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	perms, err := r.permissionsForRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (r *PGRepo) ListRoles(ctx context.Context) ([]Role, error) {
	const query = `
SELECT id, name, description, created_at, updated_at
FROM roles
ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Role{}
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		perms, err := r.permissionsForRole(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Permissions = perms
	}
	return out, nil
}

func (r *PGRepo) UpdateRole(ctx context.Context, role Role) (Role, error) {
	const query = `
UPDATE roles
SET name = $2, description = $3, updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, role.ID, role.Name, role.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Role{}, err
	}
	if affected == 0 {
		return Role{}, ErrRoleNotFound
	}
	return r.GetRole(ctx, role.ID)
}

func (r *PGRepo) DeleteRole(ctx context.Context, roleID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *PGRepo) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	const query = `
INSERT INTO permissions (id, name, description, created_at)
VALUES ($1, $2, $3, now())
RETURNING created_at`
	err := r.DB.QueryRowContext(ctx, query, perm.ID, perm.Name, perm.Description).
		Scan(&perm.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, ErrDuplicateName
		}
		return Permission{}, err
	}
	return perm, nil
}

func (r *PGRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	const query = `
SELECT id, name, description, created_at
FROM permissions
ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Permission{}
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeletePermission(ctx context.Context, permID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, permID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (r *PGRepo) SetRolePermissions(ctx context.Context, roleID string, permIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrRoleNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, permID := range permIDs {
		res, err := tx.ExecContext(ctx, `
INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, id FROM permissions WHERE id = $2`, roleID, permID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrPermissionNotFound
		}
	}
	return tx.Commit()
}

func (r *PGRepo) AssignToUser(ctx context.Context, userID, roleID string) error {
	const query = `
INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE id = $2
ON CONFLICT (user_id, role_id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRoleNotFound
		}
	}
	return nil
}

func (r *PGRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func (r *PGRepo) ListForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `
SELECT r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.name`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepo) permissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	const query = `
SELECT p.id, p.name, p.description, p.created_at
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.name`
	rows, err := r.DB.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Permission{}
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
