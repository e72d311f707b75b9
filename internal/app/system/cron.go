package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/happy-hops/choperia/pkg/logger"
)

var _ Service = (*CronService)(nil)

// CronService runs scheduled jobs under the manager lifecycle. Specs accept
// the standard five fields and descriptors such as "@every 1m" or "@daily".
type CronService struct {
	name string
	log  *logger.Logger
	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewCronService creates a scheduler evaluating specs in loc (UTC when nil).
func NewCronService(name string, loc *time.Location, log *logger.Logger) *CronService {
	if log == nil {
		log = logger.NewDefault(name)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronService{
		name: name,
		log:  log,
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{log}))),
	}
}

// Add schedules fn. Each run gets a context cancelled after timeout.
func (c *CronService) Add(spec string, timeout time.Duration, fn func(ctx context.Context)) error {
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Entries returns the number of scheduled jobs.
func (c *CronService) Entries() int { return len(c.cron.Entries()) }

func (c *CronService) Name() string { return c.name }

func (c *CronService) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.cron.Start()
	c.running = true
	c.log.WithField("jobs", len(c.cron.Entries())).Info("scheduler started")
	return nil
}

func (c *CronService) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("scheduler stopped")
	return nil
}

// cronLogger adapts the logger to cron.Logger for panic recovery output.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
