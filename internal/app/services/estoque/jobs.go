package estoque

import (
	"context"
	"time"

	"github.com/happy-hops/choperia/internal/app/system"
)

// DefaultExpirySpec is the schedule of the reservation expiry job.
const DefaultExpirySpec = "@every 1m"

// ScheduleExpiry registers the reservation expiry job on the scheduler.
func (s *Service) ScheduleExpiry(scheduler *system.CronService, spec string) error {
	if spec == "" {
		spec = DefaultExpirySpec
	}
	return scheduler.Add(spec, 30*time.Second, func(ctx context.Context) {
		if _, err := s.ExpireReservas(ctx); err != nil {
			s.log.WithError(err).Warn("reservation expiry failed")
		}
	})
}
