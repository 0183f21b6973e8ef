package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking mirrors one Cal.com booking. BookingUID is the scheduling
// platform's identity and stays stable across reschedules; MeetingTime is
// always stored in UTC, Timezone is only used when rendering for humans.
type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	BookingUID string    `gorm:"uniqueIndex;not null"`

	MeetingTime time.Time `gorm:"not null"`
	Timezone    string    `gorm:"type:varchar(64);not null"`

	AttendeeName  string `gorm:"not null"`
	AttendeeEmail string
	AttendeePhone string

	Reminders []Reminder `gorm:"foreignKey:BookingID"`

	gorm.Model
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
