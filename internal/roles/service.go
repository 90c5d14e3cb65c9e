package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("name is required")
	}
	return s.Repo.CreateRole(ctx, Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	return s.Repo.GetRole(ctx, roleID)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.Repo.ListRoles(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, roleID, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("name is required")
	}
	return s.Repo.UpdateRole(ctx, Role{
		ID:          roleID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	return s.Repo.DeleteRole(ctx, roleID)
}

func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, errors.New("name is required")
	}
	return s.Repo.CreatePermission(ctx, Permission{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
	})
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.Repo.ListPermissions(ctx)
}

func (s *Service) DeletePermission(ctx context.Context, permID string) error {
	return s.Repo.DeletePermission(ctx, permID)
}

func (s *Service) SetRolePermissions(ctx context.Context, roleID string, permIDs []string) (Role, error) {
	if err := s.Repo.SetRolePermissions(ctx, roleID, permIDs); err != nil {
		return Role{}, err
	}
	return s.Repo.GetRole(ctx, roleID)
}

func (s *Service) AssignToUser(ctx context.Context, userID, roleID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.AssignToUser(ctx, userID, roleID)
}

func (s *Service) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.RemoveFromUser(ctx, userID, roleID)
}

// ListForUser returns role names for JWT claims and response payloads.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]string, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListForUser(ctx, userID)
}
