// services/dispatcher.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"calbridge-backend/models"
	"calbridge-backend/utils"
)

// MessageSender is the WhatsApp gateway seen from the dispatcher: one
// message to one phone number.
type MessageSender interface {
	Send(ctx context.Context, phone, text string) error
}

// PermanentDeliveryError marks a failure that retrying cannot fix, e.g. an
// invalid recipient number. The scheduler moves the reminder straight to
// terminal FAILED instead of backing off.
type PermanentDeliveryError struct {
	Err error
}

func (e *PermanentDeliveryError) Error() string { return e.Err.Error() }
func (e *PermanentDeliveryError) Unwrap() error { return e.Err }

// NotificationDispatcher fans one reminder out to every configured admin
// phone. The recipient list is fixed at construction; nothing is looked up
// at send time.
type NotificationDispatcher struct {
	sender     MessageSender
	recipients []string
	timeout    time.Duration
}

func NewNotificationDispatcher(sender MessageSender, recipients []string, timeout time.Duration) *NotificationDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationDispatcher{
		sender:     sender,
		recipients: recipients,
		timeout:    timeout,
	}
}

// Dispatch sends the reminder's message to all recipients. Success means
// every recipient got it; any failure fails the whole dispatch so the retry
// re-addresses everyone. Recipients that already got the message receive it
// again on retry, which beats a recipient never getting it at all.
func (d *NotificationDispatcher) Dispatch(r models.Reminder) error {
	if len(d.recipients) == 0 {
		return &PermanentDeliveryError{Err: errors.New("no admin recipients configured")}
	}

	text := MessageFor(r.Kind, r.Booking)

	var failed []string
	var lastErr error
	permanent := false
	for _, phone := range d.recipients {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sender.Send(ctx, phone, text)
		cancel()
		if err != nil {
			log.Printf("Failed to send reminder %s/%s to %s: %v", r.Booking.BookingUID, r.Kind, phone, err)
			failed = append(failed, phone)
			lastErr = err
			var perm *PermanentDeliveryError
			if errors.As(err, &perm) {
				permanent = true
			}
			continue
		}
		log.Printf("Reminder %s/%s sent to %s", r.Booking.BookingUID, r.Kind, phone)
	}

	if lastErr == nil {
		return nil
	}
	err := fmt.Errorf("delivery to %s failed: %w", strings.Join(failed, ", "), lastErr)
	if permanent {
		return &PermanentDeliveryError{Err: err}
	}
	return err
}

// MessageFor builds the WhatsApp text for a reminder kind. Meeting times are
// rendered in the booking's recorded timezone, never UTC.
func MessageFor(kind models.ReminderKind, booking models.Booking) string {
	first := firstName(booking.AttendeeName)
	meeting := utils.HourMinuteInZone(booking.MeetingTime, booking.Timezone)

	switch kind {
	case models.KindDayBefore:
		return fmt.Sprintf("Olá %s, amanhã temos nossa reunião às %s. Estamos ansiosos para falar com você!", first, meeting)
	case models.KindFourHoursBefore:
		return fmt.Sprintf("Oi %s, tudo certo para a nossa reunião hoje às %s?", first, meeting)
	default:
		return fmt.Sprintf("%s, obrigado pela reunião! Qualquer dúvida, estamos à disposição.", first)
	}
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}
