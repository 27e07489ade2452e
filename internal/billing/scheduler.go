package billing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"investment-platform/internal/database"
)

// ReminderSender sends payment reminder emails. Implemented by the email
// service; nil disables outbound mail but the scan still runs and logs.
type ReminderSender interface {
	SendCapitalCallReminder(ctx context.Context, to, investorName, structureName string, call *database.CapitalCall, outstanding float64) error
}

// Scheduler runs periodic collections work: scanning for overdue capital
// calls and reminding investors with unpaid allocations.
type Scheduler struct {
	repo   *database.Repository
	sender ReminderSender
	config *SchedulerConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastRun  time.Time
	nextRun  time.Time
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	// Hour in UTC at which the daily overdue scan runs
	ScanHourUTC int

	// Days past due before the first reminder goes out
	GraceDays int

	// Minimum outstanding amount worth a reminder
	MinimumOutstanding float64
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		ScanHourUTC:        8,
		GraceDays:          3,
		MinimumOutstanding: 1.0,
	}
}

// NewScheduler creates a new collections scheduler
func NewScheduler(repo *database.Repository, sender ReminderSender, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}

	return &Scheduler{
		repo:     repo,
		sender:   sender,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	// A prior Stop closed the channel; the new loop needs a fresh one.
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	log.Println("Starting collections scheduler")

	s.wg.Add(1)
	go s.runScanLoop()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping collections scheduler")
	close(s.stopChan)
	s.wg.Wait()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus returns the scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"running":       s.running,
		"last_run":      s.lastRun,
		"next_run":      s.nextRun,
		"scan_hour_utc": s.config.ScanHourUTC,
		"grace_days":    s.config.GraceDays,
	}
}

// runScanLoop runs the daily overdue scan loop
func (s *Scheduler) runScanLoop() {
	defer s.wg.Done()

	s.updateNextScanTime()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			s.mu.Lock()
			next := s.nextRun
			s.mu.Unlock()
			if now.After(next) {
				log.Println("Running overdue capital call scan")
				if err := s.RunOverdueScan(context.Background()); err != nil {
					log.Printf("Error running overdue scan: %v", err)
				}
				s.updateNextScanTime()
			}
		}
	}
}

// updateNextScanTime calculates the next daily scan time
func (s *Scheduler) updateNextScanTime() {
	now := time.Now().UTC()

	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.ScanHourUTC, 0, 0, 0, time.UTC)
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()

	log.Printf("Next overdue scan scheduled for: %v", next)
}

// RunOverdueScan finds overdue capital calls and reminds every investor with
// an unpaid allocation.
func (s *Scheduler) RunOverdueScan(ctx context.Context) error {
	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.config.GraceDays)
	calls, err := s.repo.GetOverdueCapitalCalls(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to get overdue capital calls: %w", err)
	}

	log.Printf("Found %d overdue capital calls", len(calls))

	var reminded, failed, skipped int
	for _, call := range calls {
		r, f, sk, err := s.remindCall(ctx, call)
		if err != nil {
			log.Printf("Error processing overdue call %s: %v", call.ID, err)
			failed++
			continue
		}
		reminded += r
		failed += f
		skipped += sk
	}

	log.Printf("Overdue scan complete: %d reminders sent, %d failed, %d skipped", reminded, failed, skipped)
	return nil
}

// remindCall sends reminders for one overdue call
func (s *Scheduler) remindCall(ctx context.Context, call *database.CapitalCall) (reminded, failed, skipped int, err error) {
	structure, err := s.repo.GetStructureByID(ctx, call.StructureID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to load structure: %w", err)
	}

	allocations, err := s.repo.GetCapitalCallAllocations(ctx, call.ID)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to load allocations: %w", err)
	}

	for _, alloc := range allocations {
		if alloc.RemainingAmount < s.config.MinimumOutstanding {
			skipped++
			continue
		}

		user, err := s.repo.GetUserByID(ctx, alloc.InvestorUserID)
		if err != nil || user == nil {
			log.Printf("Warning: could not load investor %s for reminder", alloc.InvestorUserID)
			failed++
			continue
		}

		if s.sender == nil {
			log.Printf("Reminder (email disabled): investor %s owes %.2f on call %d of %s",
				user.Email, alloc.RemainingAmount, call.CallNumber, structure.Name)
			skipped++
			continue
		}

		if err := s.sender.SendCapitalCallReminder(ctx, user.Email, user.Name, structure.Name, call, alloc.RemainingAmount); err != nil {
			log.Printf("Warning: failed to send reminder to %s: %v", user.Email, err)
			failed++
			continue
		}
		reminded++
	}

	return reminded, failed, skipped, nil
}

// ManualScan runs the overdue scan immediately, outside the schedule
func (s *Scheduler) ManualScan(ctx context.Context) error {
	return s.RunOverdueScan(ctx)
}
