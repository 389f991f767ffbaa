package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	eventBookings  = "bookings"
	eventCars      = "cars"
	eventHeartbeat = "heartbeat"
)

// streamEvents writes snapshot() as an SSE event right away and after every change signal,
// with heartbeat events in between, until the client goes away.
func streamEvents(c *gin.Context, heartbeat time.Duration, changes <-chan struct{}, event string, snapshot func() interface{}) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.SSEvent(event, snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			c.SSEvent(event, snapshot())
		case now := <-ticker.C:
			c.SSEvent(eventHeartbeat, now.UTC().Format(time.RFC3339))
		}
		c.Writer.Flush()
	}
}
