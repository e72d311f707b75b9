package dashboard

import (
	"context"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/dashboard"
	"github.com/happy-hops/choperia/internal/app/system"
)

// DefaultReportSpec runs the daily summary just after midnight.
const DefaultReportSpec = "5 0 * * *"

// ScheduleDailyReport logs the previous day's pedido count and revenue.
func (s *Service) ScheduleDailyReport(scheduler *system.CronService, spec string) error {
	if spec == "" {
		spec = DefaultReportSpec
	}
	return scheduler.Add(spec, 30*time.Second, func(ctx context.Context) {
		if _, err := s.DailyReport(ctx); err != nil {
			s.log.WithError(err).Warn("daily report failed")
		}
	})
}

// DailyReport computes and logs yesterday's totals.
func (s *Service) DailyReport(ctx context.Context) (dashboard.Day, error) {
	yesterday := s.now().In(s.loc).AddDate(0, 0, -1)
	day, err := s.DayTotals(ctx, yesterday)
	if err != nil {
		return dashboard.Day{}, err
	}
	s.log.WithField("date", day.Date).
		WithField("pedidos", day.Pedidos).
		WithField("faturamento", day.Faturamento).
		Info("daily report")
	return day, nil
}
