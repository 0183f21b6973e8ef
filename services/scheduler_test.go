package services

import (
	"errors"
	"testing"
	"time"

	"calbridge-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReminderStore keeps reminders in memory with the same transition
// guards as the gorm store.
type fakeReminderStore struct {
	reminders []*models.Reminder
	listErr   error
}

func (f *fakeReminderStore) add(r models.Reminder) *models.Reminder {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.NextAttemptAt.IsZero() {
		r.NextAttemptAt = r.FireAt
	}
	stored := r
	f.reminders = append(f.reminders, &stored)
	return &stored
}

func (f *fakeReminderStore) UpsertBooking(ev BookingEvent) (bool, error) {
	return false, nil
}

func (f *fakeReminderStore) ListDue(now time.Time, grace time.Duration) (fireNow, missed []models.Reminder, err error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	cutoff := now.Add(-grace)
	for _, r := range f.reminders {
		if r.Status != models.StatusPending || r.FireAt.After(now) || r.NextAttemptAt.After(now) {
			continue
		}
		if r.Attempts == 0 && r.FireAt.Before(cutoff) {
			missed = append(missed, *r)
		} else {
			fireNow = append(fireNow, *r)
		}
	}
	return fireNow, missed, nil
}

func (f *fakeReminderStore) find(bookingID uuid.UUID, kind models.ReminderKind) *models.Reminder {
	for _, r := range f.reminders {
		if r.BookingID == bookingID && r.Kind == kind && r.Status == models.StatusPending {
			return r
		}
	}
	return nil
}

func (f *fakeReminderStore) MarkSent(bookingID uuid.UUID, kind models.ReminderKind, sentAt time.Time) error {
	if r := f.find(bookingID, kind); r != nil {
		r.Status = models.StatusSent
		r.Attempts++
		r.SentAt = &sentAt
	}
	return nil
}

func (f *fakeReminderStore) MarkRetry(bookingID uuid.UUID, kind models.ReminderKind, lastError string, nextAttemptAt time.Time) error {
	if r := f.find(bookingID, kind); r != nil {
		r.Attempts++
		r.LastError = lastError
		r.NextAttemptAt = nextAttemptAt
	}
	return nil
}

func (f *fakeReminderStore) MarkFailed(bookingID uuid.UUID, kind models.ReminderKind, lastError string) error {
	if r := f.find(bookingID, kind); r != nil {
		r.Status = models.StatusFailed
		r.Attempts++
		r.LastError = lastError
	}
	return nil
}

func (f *fakeReminderStore) MarkCancelled(bookingID uuid.UUID, kind models.ReminderKind, reason string) error {
	if r := f.find(bookingID, kind); r != nil {
		r.Status = models.StatusCancelled
		r.CancelReason = reason
	}
	return nil
}

type fakeSchedulerDispatcher struct {
	calls []models.Reminder
	fn    func(r models.Reminder) error
}

func (d *fakeSchedulerDispatcher) Dispatch(r models.Reminder) error {
	d.calls = append(d.calls, r)
	if d.fn != nil {
		return d.fn(r)
	}
	return nil
}

func pendingReminder(kind models.ReminderKind, fireAt time.Time) models.Reminder {
	return models.Reminder{
		BookingID: uuid.New(),
		Kind:      kind,
		FireAt:    fireAt,
		Status:    models.StatusPending,
		Booking:   models.Booking{BookingUID: "bk-" + string(kind), AttendeeName: "Maria Silva", Timezone: "UTC"},
	}
}

func TestRunOnceSendsDueReminder(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 30, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindFourHoursBefore, now.Add(-30*time.Second)))
	dispatcher := &fakeSchedulerDispatcher{}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now))

	require.NoError(t, sched.RunOnce(now))

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.StatusSent, r.Status)
	assert.Equal(t, 1, r.Attempts)
	require.NotNil(t, r.SentAt)
	assert.True(t, r.SentAt.Equal(now))
}

func TestRunOnceSkipsNotYetDue(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindOneHourAfter, now.Add(5*time.Hour)))
	dispatcher := &fakeSchedulerDispatcher{}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now))

	require.NoError(t, sched.RunOnce(now))

	assert.Empty(t, dispatcher.calls)
	assert.Equal(t, models.StatusPending, r.Status)
}

func TestRunOnceCancelsMissedWindow(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindDayBefore, now.Add(-20*time.Minute)))
	dispatcher := &fakeSchedulerDispatcher{}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now), WithGraceWindow(15*time.Minute))

	require.NoError(t, sched.RunOnce(now))

	assert.Empty(t, dispatcher.calls, "a missed reminder must never be sent")
	assert.Equal(t, models.StatusCancelled, r.Status)
	assert.Equal(t, ReasonMissedWindow, r.CancelReason)
}

func TestRunOnceFiresLateWithinGrace(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindDayBefore, now.Add(-10*time.Minute)))
	dispatcher := &fakeSchedulerDispatcher{}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now), WithGraceWindow(15*time.Minute))

	require.NoError(t, sched.RunOnce(now))

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.StatusSent, r.Status)
}

func TestRunOnceRetriesWithBackoffThenSucceeds(t *testing.T) {
	// Two transient failures, success on the third attempt.
	fire := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindFourHoursBefore, fire))

	failures := 2
	dispatcher := &fakeSchedulerDispatcher{fn: func(models.Reminder) error {
		if failures > 0 {
			failures--
			return errors.New("gateway timeout")
		}
		return nil
	}}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(fire),
		WithRetryPolicy(5*time.Minute, time.Hour, 5))

	require.NoError(t, sched.RunOnce(fire))
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.True(t, r.NextAttemptAt.Equal(fire.Add(5*time.Minute)), "first backoff is the base")

	// A tick before the backoff elapses does nothing.
	require.NoError(t, sched.RunOnce(fire.Add(time.Minute)))
	assert.Equal(t, 1, r.Attempts)

	require.NoError(t, sched.RunOnce(fire.Add(5*time.Minute)))
	assert.Equal(t, 2, r.Attempts)
	assert.True(t, r.NextAttemptAt.Equal(fire.Add(15*time.Minute)), "second backoff doubles")

	require.NoError(t, sched.RunOnce(fire.Add(15*time.Minute)))
	assert.Equal(t, models.StatusSent, r.Status)
	assert.Equal(t, 3, r.Attempts)
	require.Len(t, dispatcher.calls, 3)
}

func TestRunOnceExhaustsAttemptsToTerminalFailed(t *testing.T) {
	fire := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindDayBefore, fire))
	dispatcher := &fakeSchedulerDispatcher{fn: func(models.Reminder) error {
		return errors.New("gateway unavailable")
	}}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(fire),
		WithRetryPolicy(5*time.Minute, time.Hour, 5))

	now := fire
	for i := 0; i < 10; i++ {
		require.NoError(t, sched.RunOnce(now))
		now = r.NextAttemptAt
	}

	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, 5, r.Attempts)
	assert.Len(t, dispatcher.calls, 5, "no attempt after the cap")
	assert.Contains(t, r.LastError, "gateway unavailable")
}

func TestRunOncePermanentErrorFailsImmediately(t *testing.T) {
	fire := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	r := store.add(pendingReminder(models.KindOneHourAfter, fire))
	dispatcher := &fakeSchedulerDispatcher{fn: func(models.Reminder) error {
		return &PermanentDeliveryError{Err: errors.New("invalid recipient number")}
	}}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(fire))

	require.NoError(t, sched.RunOnce(fire))

	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, 1, r.Attempts)

	// Nothing left to do on the next tick.
	require.NoError(t, sched.RunOnce(fire.Add(time.Hour)))
	assert.Len(t, dispatcher.calls, 1)
}

func TestRunOnceOneFailureDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{}
	bad := store.add(pendingReminder(models.KindDayBefore, now.Add(-time.Minute)))
	good := store.add(pendingReminder(models.KindFourHoursBefore, now))
	dispatcher := &fakeSchedulerDispatcher{fn: func(r models.Reminder) error {
		if r.Kind == models.KindDayBefore {
			return errors.New("boom")
		}
		return nil
	}}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now))

	require.NoError(t, sched.RunOnce(now))

	assert.Equal(t, models.StatusPending, bad.Status)
	assert.Equal(t, 1, bad.Attempts)
	assert.Equal(t, models.StatusSent, good.Status)
}

func TestRunOnceAbortsOnStoreError(t *testing.T) {
	now := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	store := &fakeReminderStore{listErr: errors.New("connection refused")}
	dispatcher := &fakeSchedulerDispatcher{}
	sched := NewReminderScheduler(store, dispatcher, NewFixedClock(now))

	err := sched.RunOnce(now)

	require.Error(t, err)
	assert.Empty(t, dispatcher.calls)
}

func TestBackoffCapped(t *testing.T) {
	sched := NewReminderScheduler(&fakeReminderStore{}, &fakeSchedulerDispatcher{}, NewFixedClock(time.Now()),
		WithRetryPolicy(5*time.Minute, time.Hour, 5))

	assert.Equal(t, 5*time.Minute, sched.backoff(1))
	assert.Equal(t, 10*time.Minute, sched.backoff(2))
	assert.Equal(t, 20*time.Minute, sched.backoff(3))
	assert.Equal(t, 40*time.Minute, sched.backoff(4))
	assert.Equal(t, time.Hour, sched.backoff(5))
	assert.Equal(t, time.Hour, sched.backoff(20))
}
