package feedback

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

func (s *Service) Submit(ctx context.Context, userID, subject, body string) (Feedback, error) {
	subject = strings.TrimSpace(subject)
	if userID == "" {
		return Feedback{}, errors.New("userID is required")
	}
	if subject == "" {
		return Feedback{}, errors.New("subject is required")
	}
	return s.Repo.Create(ctx, Feedback{
		ID:      uuid.NewString(),
		UserID:  userID,
		Subject: subject,
		Body:    strings.TrimSpace(body),
	})
}

func (s *Service) Get(ctx context.Context, feedbackID string) (Feedback, error) {
	return s.Repo.GetByID(ctx, feedbackID)
}

func (s *Service) List(ctx context.Context, onlyUnresolved bool, limit, offset int) ([]Feedback, error) {
	return s.Repo.List(ctx, onlyUnresolved, limit, offset)
}

func (s *Service) Resolve(ctx context.Context, feedbackID string) (Feedback, error) {
	return s.Repo.SetResolved(ctx, feedbackID, true)
}

func (s *Service) Reopen(ctx context.Context, feedbackID string) (Feedback, error) {
	return s.Repo.SetResolved(ctx, feedbackID, false)
}

func (s *Service) Delete(ctx context.Context, feedbackID string) error {
	return s.Repo.SoftDelete(ctx, feedbackID)
}
