package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReminderKind string

const (
	KindDayBefore       ReminderKind = "DAY_BEFORE"
	KindFourHoursBefore ReminderKind = "FOUR_HOURS_BEFORE"
	KindOneHourAfter    ReminderKind = "ONE_HOUR_AFTER"
)

// AllReminderKinds lists the kinds in firing order.
var AllReminderKinds = []ReminderKind{KindDayBefore, KindFourHoursBefore, KindOneHourAfter}

type ReminderStatus string

const (
	StatusPending   ReminderStatus = "PENDING"
	StatusSent      ReminderStatus = "SENT"
	StatusCancelled ReminderStatus = "CANCELLED"
	StatusFailed    ReminderStatus = "FAILED"
)

// Terminal reports whether no further transition may leave this status.
// A PENDING reminder mid-retry is not terminal even though it has failed
// attempts recorded; FAILED here means the attempt cap was exhausted.
func (s ReminderStatus) Terminal() bool {
	return s == StatusSent || s == StatusCancelled || s == StatusFailed
}

// Reminder is one of the three scheduled notifications derived from a
// booking. At most one non-CANCELLED row exists per (BookingID, Kind); a
// reschedule cancels the current triple and creates a fresh one in the same
// transaction. Rows are never deleted, only moved to a terminal status.
type Reminder struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key"`
	BookingID uuid.UUID    `gorm:"type:uuid;not null;index:idx_booking_kind,priority:1"`
	Kind      ReminderKind `gorm:"type:varchar(20);not null;index:idx_booking_kind,priority:2"`

	FireAt time.Time      `gorm:"not null;index:idx_status_fire_at,priority:2"`
	Status ReminderStatus `gorm:"type:varchar(10);not null;index:idx_status_fire_at,priority:1"`

	// NextAttemptAt gates retry backoff; initialised to FireAt so the due
	// query can always filter on it.
	NextAttemptAt time.Time `gorm:"not null"`
	Attempts      int       `gorm:"default:0"`
	LastError     string    `gorm:"type:text"`
	CancelReason  string    `gorm:"type:varchar(40)"`
	SentAt        *time.Time

	Booking Booking `gorm:"foreignKey:BookingID"`

	gorm.Model
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
