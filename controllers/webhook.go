// controllers/webhook.go
package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"calbridge-backend/services"
	"calbridge-backend/utils"

	"github.com/gin-gonic/gin"
)

// BookingScheduler is the reminder engine seen from the webhook boundary.
type BookingScheduler interface {
	OnBookingEvent(ev services.BookingEvent) (bool, error)
}

// KnowledgeBase mirrors booking data into the lead database.
type KnowledgeBase interface {
	SyncBookingDate(ev services.BookingEvent) error
}

type WebhookController struct {
	Secret          []byte
	Scheduler       BookingScheduler
	KnowledgeBase   KnowledgeBase
	DefaultTimezone string
}

type calAttendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	TimeZone string `json:"timeZone"`
}

type calBooking struct {
	UID       string        `json:"uid"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Attendees []calAttendee `json:"attendees"`
	Organizer struct {
		TimeZone string `json:"timeZone"`
	} `json:"organizer"`
}

type calWebhookPayload struct {
	TriggerEvent string     `json:"triggerEvent"`
	Payload      calBooking `json:"payload"`
}

// HandleCalWebhook receives Cal.com booking lifecycle events. The signature
// is checked against the raw body before anything touches state; a rejected
// request never creates or alters a reminder.
func (wc *WebhookController) HandleCalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	sig := c.GetHeader("X-Cal-Signature-256")
	if err := utils.VerifyCalSignature(wc.Secret, body, sig); err != nil {
		if errors.Is(err, utils.ErrMissingSignature) {
			utils.RespondWithError(c, http.StatusBadRequest, "Missing signature")
		} else {
			utils.RespondWithError(c, http.StatusUnauthorized, "Invalid signature")
		}
		return
	}

	var payload calWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	if payload.TriggerEvent != "BOOKING_CREATED" && payload.TriggerEvent != "BOOKING_RESCHEDULED" {
		c.JSON(http.StatusOK, gin.H{"ignored": payload.TriggerEvent})
		return
	}

	if payload.Payload.UID == "" || len(payload.Payload.Attendees) == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Payload missing uid or attendees")
		return
	}

	start, err := time.Parse(time.RFC3339, payload.Payload.StartTime)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid startTime: "+err.Error())
		return
	}

	attendee := payload.Payload.Attendees[0]
	tz := attendee.TimeZone
	if tz == "" {
		tz = payload.Payload.Organizer.TimeZone
	}
	if tz == "" {
		tz = wc.DefaultTimezone
	}

	ev := services.BookingEvent{
		BookingUID:    payload.Payload.UID,
		MeetingTime:   start.UTC(),
		Timezone:      tz,
		AttendeeName:  attendee.Name,
		AttendeeEmail: attendee.Email,
		AttendeePhone: attendee.Phone,
	}

	changed, err := wc.Scheduler.OnBookingEvent(ev)
	if err != nil {
		// Cal.com redelivers on 5xx, which covers storage outages.
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to schedule reminders")
		return
	}

	if wc.KnowledgeBase != nil {
		if err := wc.KnowledgeBase.SyncBookingDate(ev); err != nil {
			log.Printf("WARN: Notion sync failed for booking %s: %v", ev.BookingUID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "scheduled": true, "changed": changed})
}
