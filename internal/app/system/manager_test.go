package system

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	*r.log = append(*r.log, "start:"+r.name)
	return r.startErr
}

func (r recordingService) Stop(context.Context) error {
	*r.log = append(*r.log, "stop:"+r.name)
	return r.stopErr
}

func TestManager_StartStopOrder(t *testing.T) {
	var calls []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, log: &calls}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recordingService{name: "a", log: &calls}); err == nil {
		t.Fatalf("expected duplicate name error")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := "start:a,start:b,start:c,stop:c,stop:b,stop:a"
	if got := strings.Join(calls, ","); got != want {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var calls []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", log: &calls})
	_ = m.Register(recordingService{name: "b", log: &calls, startErr: errors.New("boom")})
	_ = m.Register(recordingService{name: "c", log: &calls})

	err := m.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "start b") {
		t.Fatalf("expected start error for b, got %v", err)
	}
	want := "start:a,start:b,stop:a"
	if got := strings.Join(calls, ","); got != want {
		t.Fatalf("unexpected calls %s", got)
	}
}

func TestManager_StopCollectsErrors(t *testing.T) {
	var calls []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", log: &calls, stopErr: errors.New("a failed")})
	_ = m.Register(recordingService{name: "b", log: &calls, stopErr: errors.New("b failed")})
	_ = m.Register(NoopService{ServiceName: "noop"})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := m.Stop(context.Background())
	if err == nil || !strings.Contains(err.Error(), "a failed") || !strings.Contains(err.Error(), "b failed") {
		t.Fatalf("expected both stop errors, got %v", err)
	}
	if names := m.Names(); len(names) != 3 || names[2] != "noop" {
		t.Fatalf("unexpected names %v", names)
	}
}
