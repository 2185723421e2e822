package matching

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gufagu-backend/pkg/logger"
)

// StartSweeper schedules the queue TTL sweep. Stop the returned cron on shutdown.
func (s *Service) StartSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Queue sweep panicked", zap.Any("panic", r))
			}
		}()
		s.Sweep(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule queue sweep: %w", err)
	}

	c.Start()
	logger.Info("Queue sweeper started", zap.String("spec", spec))
	return c, nil
}
