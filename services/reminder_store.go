// services/reminder_store.go
package services

import (
	"errors"
	"fmt"
	"time"

	"calbridge-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cancellation reasons recorded on CANCELLED reminders.
const (
	ReasonRescheduled  = "rescheduled"
	ReasonMissedWindow = "missed window"
)

// BookingEvent carries what the webhook extracted from a booking lifecycle
// event. MeetingTime must already be UTC.
type BookingEvent struct {
	BookingUID    string
	MeetingTime   time.Time
	Timezone      string
	AttendeeName  string
	AttendeeEmail string
	AttendeePhone string
}

// GormReminderStore owns the durable Booking and Reminder tables. Every
// scheduler decision reads and writes through here, so nothing depends on
// in-memory state surviving a restart.
type GormReminderStore struct {
	db *gorm.DB
}

func NewReminderStore(db *gorm.DB) *GormReminderStore {
	return &GormReminderStore{db: db}
}

// UpsertBooking applies a BOOKING_CREATED or BOOKING_RESCHEDULED event.
// Unknown booking: create it plus its three PENDING reminders. Known booking
// with an unchanged meeting time: refresh contact fields only, so webhook
// redelivery never churns reminders. Known booking with a new meeting time:
// cancel the current non-terminal reminders, move the booking, and create a
// fresh triple, all in one transaction under a row lock on the booking so a
// concurrent wake-loop run never observes a half-swapped triple.
//
// The returned bool reports whether reminders were (re)created.
func (s *GormReminderStore) UpsertBooking(ev BookingEvent) (bool, error) {
	changed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_uid = ?", ev.BookingUID).
			First(&booking).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			booking = models.Booking{
				BookingUID:    ev.BookingUID,
				MeetingTime:   ev.MeetingTime.UTC(),
				Timezone:      ev.Timezone,
				AttendeeName:  ev.AttendeeName,
				AttendeeEmail: ev.AttendeeEmail,
				AttendeePhone: ev.AttendeePhone,
			}
			if err := tx.Create(&booking).Error; err != nil {
				return fmt.Errorf("create booking: %w", err)
			}
			changed = true
			return createReminderTriple(tx, booking)
		}
		if err != nil {
			return err
		}

		booking.AttendeeName = ev.AttendeeName
		booking.AttendeeEmail = ev.AttendeeEmail
		booking.AttendeePhone = ev.AttendeePhone

		if booking.MeetingTime.UTC().Equal(ev.MeetingTime.UTC()) {
			// Redelivered event, meeting time unchanged. No reminder churn:
			// that would reset attempt counts and could double a send in flight.
			return tx.Save(&booking).Error
		}

		if err := tx.Model(&models.Reminder{}).
			Where("booking_id = ? AND status = ?", booking.ID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":        models.StatusCancelled,
				"cancel_reason": ReasonRescheduled,
			}).Error; err != nil {
			return fmt.Errorf("cancel superseded reminders: %w", err)
		}

		booking.MeetingTime = ev.MeetingTime.UTC()
		booking.Timezone = ev.Timezone
		if err := tx.Save(&booking).Error; err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		changed = true
		return createReminderTriple(tx, booking)
	})
	return changed, err
}

func createReminderTriple(tx *gorm.DB, booking models.Booking) error {
	offsets := ComputeOffsets(booking.MeetingTime)
	for _, kind := range models.AllReminderKinds {
		reminder := models.Reminder{
			BookingID:     booking.ID,
			Kind:          kind,
			FireAt:        offsets[kind],
			NextAttemptAt: offsets[kind],
			Status:        models.StatusPending,
		}
		if err := tx.Create(&reminder).Error; err != nil {
			return fmt.Errorf("create %s reminder: %w", kind, err)
		}
	}
	return nil
}

// ListDue returns PENDING reminders whose fire and backoff instants have both
// passed, split into those still inside the grace window and those missed.
// Only never-attempted reminders can be missed; a reminder already in retry
// is allowed past the window, its lifetime is bounded by the attempt cap.
func (s *GormReminderStore) ListDue(now time.Time, grace time.Duration) (fireNow, missed []models.Reminder, err error) {
	var due []models.Reminder
	err = s.db.Preload("Booking").
		Where("status = ? AND fire_at <= ? AND next_attempt_at <= ?", models.StatusPending, now, now).
		Order("fire_at").
		Find(&due).Error
	if err != nil {
		return nil, nil, fmt.Errorf("list due reminders: %w", err)
	}

	cutoff := now.Add(-grace)
	for _, r := range due {
		if r.Attempts == 0 && r.FireAt.Before(cutoff) {
			missed = append(missed, r)
		} else {
			fireNow = append(fireNow, r)
		}
	}
	return fireNow, missed, nil
}

// MarkSent records a successful delivery. Guarded on PENDING so it is a
// no-op once the reminder is terminal; SENT is never left. Attempts counts
// the successful attempt as well.
func (s *GormReminderStore) MarkSent(bookingID uuid.UUID, kind models.ReminderKind, sentAt time.Time) error {
	return s.db.Model(&models.Reminder{}).
		Where("booking_id = ? AND kind = ? AND status = ?", bookingID, kind, models.StatusPending).
		Updates(map[string]interface{}{
			"status":   models.StatusSent,
			"attempts": gorm.Expr("attempts + 1"),
			"sent_at":  sentAt,
		}).Error
}

// MarkRetry records a failed attempt that is still within the attempt cap:
// the reminder stays PENDING and becomes due again at nextAttemptAt.
func (s *GormReminderStore) MarkRetry(bookingID uuid.UUID, kind models.ReminderKind, lastError string, nextAttemptAt time.Time) error {
	return s.db.Model(&models.Reminder{}).
		Where("booking_id = ? AND kind = ? AND status = ?", bookingID, kind, models.StatusPending).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
		}).Error
}

// MarkFailed moves a reminder to terminal FAILED. Used when the attempt cap
// is exhausted or delivery failed permanently. The row stays queryable so
// operators can see what was never delivered.
func (s *GormReminderStore) MarkFailed(bookingID uuid.UUID, kind models.ReminderKind, lastError string) error {
	return s.db.Model(&models.Reminder{}).
		Where("booking_id = ? AND kind = ? AND status = ?", bookingID, kind, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}).Error
}

// MarkCancelled moves a reminder to CANCELLED with a reason. No-op when the
// reminder is already terminal.
func (s *GormReminderStore) MarkCancelled(bookingID uuid.UUID, kind models.ReminderKind, reason string) error {
	return s.db.Model(&models.Reminder{}).
		Where("booking_id = ? AND kind = ? AND status = ?", bookingID, kind, models.StatusPending).
		Updates(map[string]interface{}{
			"status":        models.StatusCancelled,
			"cancel_reason": reason,
		}).Error
}
