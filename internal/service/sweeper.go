package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rongwang/fabricstock/internal/utils"
)

// Sweepable is anything holding drafts that can expire
type Sweepable interface {
	Sweep(now time.Time) int
}

// NewSweeper registers a job closing idle drafts on schedule. The returned
// scheduler is not started.
func NewSweeper(svc Sweepable, schedule string, logger *utils.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		closed := svc.Sweep(time.Now())
		logger.Debug("draft sweep finished", "closed", closed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register draft sweep %q: %w", schedule, err)
	}
	return c, nil
}
