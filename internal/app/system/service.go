package system

import "context"

// Service is a component with a start/stop lifecycle, such as a background
// refresher or the realtime event bridge.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService registers a name with the manager without doing any work.
// Request-driven services use it so they still appear in status listings.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                { return n.ServiceName }
func (n NoopService) Start(context.Context) error { return nil }
func (n NoopService) Stop(context.Context) error  { return nil }
