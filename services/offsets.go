package services

import (
	"time"

	"calbridge-backend/models"
)

var reminderOffsets = map[models.ReminderKind]time.Duration{
	models.KindDayBefore:       -24 * time.Hour,
	models.KindFourHoursBefore: -4 * time.Hour,
	models.KindOneHourAfter:    time.Hour,
}

// ComputeOffsets derives the three reminder instants from a meeting time.
// Pure and deterministic; instants may already be in the past, the scheduler
// decides what to do with those.
func ComputeOffsets(meetingTime time.Time) map[models.ReminderKind]time.Time {
	t := meetingTime.UTC()
	out := make(map[models.ReminderKind]time.Time, len(reminderOffsets))
	for kind, offset := range reminderOffsets {
		out[kind] = t.Add(offset)
	}
	return out
}
