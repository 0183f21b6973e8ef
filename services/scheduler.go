// services/scheduler.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"calbridge-backend/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ReminderStore is what the scheduler needs from persistence. Implemented by
// GormReminderStore; tests swap in an in-memory fake.
type ReminderStore interface {
	UpsertBooking(ev BookingEvent) (bool, error)
	ListDue(now time.Time, grace time.Duration) (fireNow, missed []models.Reminder, err error)
	MarkSent(bookingID uuid.UUID, kind models.ReminderKind, sentAt time.Time) error
	MarkRetry(bookingID uuid.UUID, kind models.ReminderKind, lastError string, nextAttemptAt time.Time) error
	MarkFailed(bookingID uuid.UUID, kind models.ReminderKind, lastError string) error
	MarkCancelled(bookingID uuid.UUID, kind models.ReminderKind, reason string) error
}

// Dispatcher delivers one reminder to all configured recipients.
type Dispatcher interface {
	Dispatch(r models.Reminder) error
}

const (
	defaultPollInterval = time.Minute
	defaultGraceWindow  = 15 * time.Minute
	defaultBackoffBase  = 5 * time.Minute
	defaultBackoffCap   = time.Hour
	defaultMaxAttempts  = 5
)

// ReminderScheduler drives the reminder state machine: webhook events go in
// through OnBookingEvent, the cron-driven wake loop calls RunOnce. It holds
// no reminder state of its own.
type ReminderScheduler struct {
	store      ReminderStore
	dispatcher Dispatcher
	clock      Clock

	pollInterval time.Duration
	graceWindow  time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
	maxAttempts  int

	cron *cron.Cron
}

type SchedulerOption func(*ReminderScheduler)

func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *ReminderScheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func WithGraceWindow(d time.Duration) SchedulerOption {
	return func(s *ReminderScheduler) {
		if d > 0 {
			s.graceWindow = d
		}
	}
}

func WithRetryPolicy(base, cap time.Duration, maxAttempts int) SchedulerOption {
	return func(s *ReminderScheduler) {
		if base > 0 {
			s.backoffBase = base
		}
		if cap > 0 {
			s.backoffCap = cap
		}
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

func NewReminderScheduler(store ReminderStore, dispatcher Dispatcher, clk Clock, opts ...SchedulerOption) *ReminderScheduler {
	s := &ReminderScheduler{
		store:        store,
		dispatcher:   dispatcher,
		clock:        clk,
		pollInterval: defaultPollInterval,
		graceWindow:  defaultGraceWindow,
		backoffBase:  defaultBackoffBase,
		backoffCap:   defaultBackoffCap,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnBookingEvent applies a BOOKING_CREATED or BOOKING_RESCHEDULED event.
// Safe to call twice with identical arguments; redelivery is detected by an
// unchanged meeting time and leaves the reminders alone.
func (s *ReminderScheduler) OnBookingEvent(ev BookingEvent) (bool, error) {
	ev.MeetingTime = ev.MeetingTime.UTC()
	changed, err := s.store.UpsertBooking(ev)
	if err != nil {
		return false, fmt.Errorf("upsert booking %s: %w", ev.BookingUID, err)
	}
	if changed {
		log.Printf("Scheduled reminders for booking %s, meeting at %s (%s)",
			ev.BookingUID, ev.MeetingTime.Format(time.RFC3339), ev.Timezone)
	} else {
		log.Printf("Booking %s unchanged, reminders untouched", ev.BookingUID)
	}
	return changed, nil
}

// RunOnce processes everything due at now: reminders that missed the grace
// window are cancelled, the rest are dispatched. Delivery errors become
// state transitions on the one reminder, never an aborted run; a store read
// error aborts the run and the next tick retries.
func (s *ReminderScheduler) RunOnce(now time.Time) error {
	fireNow, missed, err := s.store.ListDue(now, s.graceWindow)
	if err != nil {
		return err
	}

	for _, r := range missed {
		if err := s.store.MarkCancelled(r.BookingID, r.Kind, ReasonMissedWindow); err != nil {
			log.Printf("Failed to cancel missed reminder %s/%s: %v", r.Booking.BookingUID, r.Kind, err)
			continue
		}
		log.Printf("Cancelled reminder %s/%s, due %s was beyond the grace window",
			r.Booking.BookingUID, r.Kind, r.FireAt.Format(time.RFC3339))
	}

	for _, r := range fireNow {
		s.process(r, now)
	}
	return nil
}

func (s *ReminderScheduler) process(r models.Reminder, now time.Time) {
	err := s.dispatcher.Dispatch(r)
	if err == nil {
		if err := s.store.MarkSent(r.BookingID, r.Kind, now); err != nil {
			log.Printf("Failed to mark reminder %s/%s sent: %v", r.Booking.BookingUID, r.Kind, err)
		}
		return
	}

	attempts := r.Attempts + 1
	var perm *PermanentDeliveryError
	if errors.As(err, &perm) || attempts >= s.maxAttempts {
		if markErr := s.store.MarkFailed(r.BookingID, r.Kind, err.Error()); markErr != nil {
			log.Printf("Failed to mark reminder %s/%s failed: %v", r.Booking.BookingUID, r.Kind, markErr)
			return
		}
		log.Printf("Reminder %s/%s failed permanently after %d attempt(s): %v",
			r.Booking.BookingUID, r.Kind, attempts, err)
		return
	}

	next := now.Add(s.backoff(attempts))
	if markErr := s.store.MarkRetry(r.BookingID, r.Kind, err.Error(), next); markErr != nil {
		log.Printf("Failed to mark reminder %s/%s for retry: %v", r.Booking.BookingUID, r.Kind, markErr)
		return
	}
	log.Printf("Reminder %s/%s attempt %d failed, retrying at %s: %v",
		r.Booking.BookingUID, r.Kind, attempts, next.Format(time.RFC3339), err)
}

// backoff returns the delay before the next attempt after the given number
// of failed attempts: base doubled per failure, capped.
func (s *ReminderScheduler) backoff(attempts int) time.Duration {
	d := s.backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= s.backoffCap {
			return s.backoffCap
		}
	}
	if d > s.backoffCap {
		return s.backoffCap
	}
	return d
}

// Start launches the wake loop. SkipIfStillRunning drops a tick that fires
// while the previous run is still processing instead of queueing it.
func (s *ReminderScheduler) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.pollInterval), func() {
		if err := s.RunOnce(s.clock.Now()); err != nil {
			log.Printf("Reminder run failed, retrying next tick: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule wake loop: %w", err)
	}
	c.Start()
	s.cron = c
	log.Println("Reminder scheduler started")
	return nil
}

func (s *ReminderScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
