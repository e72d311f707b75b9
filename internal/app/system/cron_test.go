package system

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCronService_RunsJobs(t *testing.T) {
	svc := NewCronService("test-cron", nil, nil)
	var runs int32
	if err := svc.Add("@every 1s", time.Second, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add("not a spec", 0, func(context.Context) {}); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if svc.Entries() != 1 {
		t.Fatalf("expected 1 entry, got %d", svc.Entries())
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&runs) == 0 {
		t.Fatalf("expected job to run")
	}
}
