package main

import (
	"fmt"
	"log"

	"calbridge-backend/config"
	"calbridge-backend/controllers"
	"calbridge-backend/models"
	"calbridge-backend/routes"
	"calbridge-backend/services"
	"calbridge-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	config.ConnectDB(cfg.DBURL)
	config.DB.AutoMigrate(
		&models.User{},
		&models.Booking{},
		&models.Reminder{},
	)

	store := services.NewReminderStore(config.DB)
	sender := services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, cfg.SendTimeout)
	dispatcher := services.NewNotificationDispatcher(sender, utils.ParseAdminPhones(cfg.AdminPhones), cfg.SendTimeout)

	scheduler := services.NewReminderScheduler(store, dispatcher, services.NewSystemClock(),
		services.WithPollInterval(cfg.PollInterval),
		services.WithGraceWindow(cfg.GraceWindow),
		services.WithRetryPolicy(cfg.BackoffBase, cfg.BackoffCap, cfg.MaxAttempts),
	)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start reminder scheduler: %v", err)
	}
	defer scheduler.Stop()

	webhook := &controllers.WebhookController{
		Secret:          []byte(cfg.CalSecret),
		Scheduler:       scheduler,
		KnowledgeBase:   services.NewNotionService(cfg.NotionToken, cfg.NotionDB),
		DefaultTimezone: cfg.Timezone,
	}

	r := routes.SetupRouter(cfg, webhook)
	printRoutes(r)
	r.Run(":" + cfg.Port)
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
