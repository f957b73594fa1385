package service

import (
	"context"

	"github.com/intervia/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
)

// MonitorService aggregates live session data for the admin dashboard.
type MonitorService struct {
	repo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(repo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{repo: repo}
}

// ListLiveSessions returns every non-terminal session with candidate data and
// live answer counts.
func (s *MonitorService) ListLiveSessions(ctx context.Context) ([]repository.LiveSession, error) {
	return s.repo.ListLiveSessions(ctx)
}

// SubscribeViolations opens the live violation feed. The caller owns the
// returned subscription and must close it.
func (s *MonitorService) SubscribeViolations(ctx context.Context) *redis.PubSub {
	return s.repo.SubscribeViolations(ctx)
}
