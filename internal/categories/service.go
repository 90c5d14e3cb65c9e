package categories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for categories.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) Create(ctx context.Context, name, tag, description string) (Category, error) {
	name = strings.TrimSpace(name)
	tag = normalizeTag(tag)
	if name == "" || tag == "" {
		return Category{}, errors.New("name and tag are required")
	}
	category := Category{
		ID:          uuid.NewString(),
		Name:        name,
		Tag:         tag,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, category); err != nil {
		return Category{}, err
	}
	return category, nil
}

func (s *Service) Get(ctx context.Context, categoryID string) (Category, error) {
	if categoryID == "" {
		return Category{}, errors.New("category id is required")
	}
	return s.Repo.GetByID(ctx, categoryID)
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.Repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, categoryID, name, tag, description string) (Category, error) {
	existing, err := s.Repo.GetByID(ctx, categoryID)
	if err != nil {
		return Category{}, err
	}
	if existing.DeletedAt != nil {
		return Category{}, ErrNotFound
	}
	if name = strings.TrimSpace(name); name != "" {
		existing.Name = name
	}
	if tag = normalizeTag(tag); tag != "" {
		existing.Tag = tag
	}
	if description = strings.TrimSpace(description); description != "" {
		existing.Description = description
	}
	if err := s.Repo.Update(ctx, existing); err != nil {
		return Category{}, err
	}
	return existing, nil
}

func (s *Service) Delete(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return errors.New("category id is required")
	}
	return s.Repo.SoftDelete(ctx, categoryID)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
