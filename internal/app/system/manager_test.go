package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name   string
	order  *[]string
	failOn string
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(context.Context) error {
	if s.failOn == "start" {
		return errors.New("start failed")
	}
	*s.order = append(*s.order, "start:"+s.name)
	return nil
}

func (s *recordingService) Stop(context.Context) error {
	if s.failOn == "stop" {
		return errors.New("stop failed")
	}
	*s.order = append(*s.order, "stop:"+s.name)
	return nil
}

func TestManager_StartStopOrder(t *testing.T) {
	var order []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, order: &order}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestManager_StartFailureUnwindsStarted(t *testing.T) {
	var order []string
	m := NewManager()
	m.Register(&recordingService{name: "a", order: &order})
	m.Register(&recordingService{name: "boom", order: &order, failOn: "start"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if len(order) != 2 || order[1] != "stop:a" {
		t.Fatalf("order = %v, want started services unwound", order)
	}
}

func TestManager_RejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "a"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestManager_RejectsRegisterAfterStart(t *testing.T) {
	var order []string
	m := NewManager()
	m.Register(&recordingService{name: "a", order: &order})
	m.Start(context.Background())
	defer m.Stop(context.Background())

	if err := m.Register(&recordingService{name: "b", order: &order}); err == nil {
		t.Fatal("expected registration rejection after start")
	}
}
