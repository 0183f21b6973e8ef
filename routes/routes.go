package routes

import (
	"calbridge-backend/config"
	"calbridge-backend/controllers"
	"calbridge-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg config.App, webhook *controllers.WebhookController) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	adminPhones := utils.ParseAdminPhones(cfg.AdminPhones)
	r.GET("/health", controllers.Health("1.0.0", cfg.Timezone, len(adminPhones)))

	// Authenticated by webhook signature, not JWT
	r.POST("/webhook/cal", webhook.HandleCalWebhook)

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)

		auth.Use(utils.AuthMiddleware())
		auth.GET("/me", controllers.Me)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware())
	{
		api.GET("/reminders", controllers.ListReminders)

		bookings := api.Group("/bookings")
		{
			bookings.GET("/:uid", controllers.GetBooking)
			bookings.GET("/:uid/reminders", controllers.GetBookingReminders)
		}
	}

	return r
}
