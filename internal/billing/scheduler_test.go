package billing

import (
	"testing"
	"time"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	if cfg.ScanHourUTC != 8 {
		t.Errorf("ScanHourUTC = %d, want 8", cfg.ScanHourUTC)
	}
	if cfg.GraceDays != 3 {
		t.Errorf("GraceDays = %d, want 3", cfg.GraceDays)
	}
	if cfg.MinimumOutstanding != 1.0 {
		t.Errorf("MinimumOutstanding = %v, want 1.0", cfg.MinimumOutstanding)
	}
}

func TestNewSchedulerNilConfigGetsDefaults(t *testing.T) {
	s := NewScheduler(nil, nil, nil)
	if s.config == nil {
		t.Fatal("nil config should be replaced with defaults")
	}
	if s.config.ScanHourUTC != DefaultSchedulerConfig().ScanHourUTC {
		t.Errorf("ScanHourUTC = %d, want default", s.config.ScanHourUTC)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())

	if s.IsRunning() {
		t.Fatal("scheduler must not be running before Start")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should be running after Start")
	}

	if err := s.Start(); err == nil {
		t.Error("second Start() should fail while running")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("scheduler must not be running after Stop")
	}

	// Stop on a stopped scheduler is a no-op
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on stopped scheduler: %v", err)
	}
}

func TestSchedulerRestart(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	// Restart gets a fresh stop channel, so the new scan loop must stay
	// alive and the second Stop must not close an already-closed channel.
	if err := s.Start(); err != nil {
		t.Fatalf("Start() after Stop() error: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should be running after restart")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Stop(); err != nil {
			t.Errorf("Stop() after restart error: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() after restart did not return")
	}
	if s.IsRunning() {
		t.Fatal("scheduler must not be running after second Stop")
	}
}

func TestSchedulerStatus(t *testing.T) {
	s := NewScheduler(nil, nil, &SchedulerConfig{ScanHourUTC: 6, GraceDays: 5, MinimumOutstanding: 10})

	status := s.GetStatus()
	if status["running"] != false {
		t.Errorf("running = %v, want false", status["running"])
	}
	if status["scan_hour_utc"] != 6 {
		t.Errorf("scan_hour_utc = %v, want 6", status["scan_hour_utc"])
	}
	if status["grace_days"] != 5 {
		t.Errorf("grace_days = %v, want 5", status["grace_days"])
	}
	if _, ok := status["last_run"].(time.Time); !ok {
		t.Error("last_run should be a time.Time")
	}
}

func TestUpdateNextScanTime(t *testing.T) {
	s := NewScheduler(nil, nil, &SchedulerConfig{ScanHourUTC: 8})
	s.updateNextScanTime()

	s.mu.Lock()
	next := s.nextRun
	s.mu.Unlock()

	now := time.Now().UTC()
	if !next.After(now) {
		t.Errorf("next scan %v must be in the future", next)
	}
	if next.Hour() != 8 || next.Minute() != 0 {
		t.Errorf("next scan %v should land on the configured hour", next)
	}
	if next.Sub(now) > 24*time.Hour {
		t.Errorf("next scan %v is more than a day out", next)
	}
}
