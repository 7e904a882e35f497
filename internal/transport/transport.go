package transport

import (
	"github.com/gin-gonic/gin"

	"github.com/avdeev-m/ticketflow/internal/transport/middleware"
)

func InitRoutes(eventHandler *EventHandler, purchaseHandler *PurchaseHandler, ticketHandler *TicketHandler) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		// Event routes
		events := api.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("/:id", eventHandler.GetEvent)
			events.POST("/:id/sections", eventHandler.CreateSection)
			events.POST("/:id/ticket-types", eventHandler.CreateTicketType)
		}

		// Ticket type routes
		ticketTypes := api.Group("/ticket-types")
		{
			ticketTypes.GET("/:id", eventHandler.GetTicketType)
			ticketTypes.POST("/:id/purchase", purchaseHandler.Purchase)
		}

		// Purchase routes
		purchases := api.Group("/purchases")
		{
			purchases.GET("/:id", purchaseHandler.GetPurchase)
			purchases.POST("/:id/cancel", purchaseHandler.CancelPurchase)
		}

		// Ticket routes
		tickets := api.Group("/tickets")
		{
			tickets.POST("/:id/confirm", ticketHandler.ConfirmTicket)
			tickets.GET("/:id/qr", ticketHandler.GetTicketQR)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return router
}
