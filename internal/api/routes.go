package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/middleware"
)

// SetupRoutes registers the API on router. Global middleware (logging, recovery, CORS)
// is expected to be installed by the caller.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	bookingHandler *BookingHandler,
	carHandler *CarHandler,
	userHandler *UserHandler,
) {
	apiV1 := router.Group("/api/v1", authMW.VerifyToken())
	{
		apiV1.GET("/me", userHandler.GetMe)
		apiV1.GET("/spots", userHandler.GetSpots)

		bookings := apiV1.Group("/bookings")
		{
			bookings.GET("", bookingHandler.GetBookings)
			bookings.GET("/week", bookingHandler.GetWeek)
			bookings.GET("/mine", bookingHandler.GetMine)
			bookings.GET("/stream", bookingHandler.StreamBookings)
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.DELETE("", bookingHandler.CancelBookingBySpot)
			bookings.DELETE("/:bookingId", bookingHandler.CancelBooking)
		}

		cars := apiV1.Group("/cars")
		{
			cars.GET("", carHandler.ListCars)
			cars.GET("/stream", carHandler.StreamCars)
			cars.POST("", carHandler.AddCar)
			cars.DELETE("/:carId", carHandler.RemoveCar)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Parking backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
