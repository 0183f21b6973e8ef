// controllers/reminder.go
package controllers

import (
	"errors"
	"net/http"
	"strings"

	"calbridge-backend/config"
	"calbridge-backend/models"
	"calbridge-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListReminders lists reminders by status, newest due first. Defaults to
// FAILED so operators land on what needs attention.
func ListReminders(c *gin.Context) {
	status := models.ReminderStatus(strings.ToUpper(c.DefaultQuery("status", string(models.StatusFailed))))
	switch status {
	case models.StatusPending, models.StatusSent, models.StatusCancelled, models.StatusFailed:
	default:
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}

	var reminders []models.Reminder
	if err := config.DB.Preload("Booking").
		Where("status = ?", status).
		Order("fire_at desc").
		Limit(200).
		Find(&reminders).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve reminders")
		return
	}

	c.JSON(http.StatusOK, reminders)
}

// GetBooking retrieves a booking by its Cal.com uid
func GetBooking(c *gin.Context) {
	var booking models.Booking
	if err := config.DB.Where("booking_uid = ?", c.Param("uid")).
		First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Booking not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetBookingReminders retrieves the full reminder history for one booking,
// terminal rows included.
func GetBookingReminders(c *gin.Context) {
	var booking models.Booking
	if err := config.DB.Where("booking_uid = ?", c.Param("uid")).
		First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Booking not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	var reminders []models.Reminder
	if err := config.DB.Where("booking_id = ?", booking.ID).
		Order("fire_at").
		Find(&reminders).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve reminders")
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking, "reminders": reminders})
}
