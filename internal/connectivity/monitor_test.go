package connectivity

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"
)

func quietConfig() *Config {
	return &Config{
		ProbeInterval: time.Hour,
		Logger:        log.New(discard{}, "", 0),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestStartsOffline(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return nil }, quietConfig())
	if m.Online() {
		t.Error("monitor must start offline until the first probe")
	}
}

func TestCheckNow(t *testing.T) {
	var fail bool
	m := NewMonitor(func(ctx context.Context) error {
		if fail {
			return errors.New("unreachable")
		}
		return nil
	}, quietConfig())

	if !m.CheckNow(context.Background()) {
		t.Error("expected online after successful probe")
	}
	if !m.Online() {
		t.Error("Online() should reflect the probe result")
	}

	fail = true
	if m.CheckNow(context.Background()) {
		t.Error("expected offline after failed probe")
	}
	if m.Online() {
		t.Error("Online() should reflect the failed probe")
	}
}

func TestChangesEmittedOnFlipOnly(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return nil }, quietConfig())

	m.SetOnline(true)
	m.SetOnline(true) // no flip
	m.SetOnline(false)

	select {
	case v := <-m.Changes():
		if v != true {
			t.Errorf("first change = %v, want true", v)
		}
	default:
		t.Fatal("expected a change notification for the first flip")
	}

	select {
	case v := <-m.Changes():
		if v != false {
			t.Errorf("second change = %v, want false", v)
		}
	default:
		t.Fatal("expected a change notification for the second flip")
	}

	select {
	case v := <-m.Changes():
		t.Errorf("unexpected extra change notification: %v", v)
	default:
	}
}
