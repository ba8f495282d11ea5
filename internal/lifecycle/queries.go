package lifecycle

import (
	"context"
	"fmt"

	"github.com/reviewcash/backend/internal/models"
)

// ListRequests returns pending records only when activeOnly is set.
func (s *Service) ListRequests(ctx context.Context, kind models.Kind, activeOnly bool) ([]*models.Request, error) {
	if activeOnly {
		return s.store.Requests().ListActive(ctx, kind)
	}
	return s.store.Requests().ListAll(ctx, kind)
}

func (s *Service) ListTasks(ctx context.Context, activeOnly bool) ([]*models.Task, error) {
	if activeOnly {
		return s.store.Tasks().ListActive(ctx)
	}
	return s.store.Tasks().ListAll(ctx)
}

// Profile returns the user with cooldown timestamps, creating the user on
// first sight.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, invalid("uid", "required")
	}
	u, err := s.store.Users().Ensure(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	last, err := s.limiter.Last(ctx, userID)
	if err != nil {
		s.logger.Warn("read cooldowns", "user_id", userID, "error", err)
		return u, nil
	}
	u.LastSubmission = last
	return u, nil
}
