package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/core"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
	"github.com/gustavlindstroms/parkmalmokontor/internal/plate"
)

// CarHandler handles API endpoints related to the caller's saved cars.
type CarHandler struct {
	repo      db.CarRepository
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewCarHandler creates a new CarHandler.
func NewCarHandler(repo db.CarRepository, heartbeat time.Duration, logger *zap.Logger) *CarHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarHandler{repo: repo, heartbeat: heartbeat, logger: logger}
}

func mapCarErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	switch {
	case errors.Is(err, core.ErrCarExists):
		statusCode = http.StatusConflict
	case errors.Is(err, core.ErrAddPermissionDenied), errors.Is(err, core.ErrRemovePermission):
		statusCode = http.StatusForbidden
	case errors.Is(err, plate.ErrLength), errors.Is(err, plate.ErrPattern):
		statusCode = http.StatusBadRequest
	case errors.Is(err, core.ErrAddCarFailed), errors.Is(err, core.ErrRemoveCarFailed):
		logger.Error("Car write failed", zap.Error(err))
		statusCode = http.StatusServiceUnavailable
	default:
		writeInternalError(c, logger, err)
		return
	}
	c.JSON(statusCode, ErrorResponse{Error: core.UserMessage(err)})
}

// attach starts a CarSync for the caller and waits for its first push.
// The caller must Detach the returned sync.
func (h *CarHandler) attach(c *gin.Context) (*core.CarSync, bool) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return nil, false
	}
	sync, err := core.NewCarSync(core.CarSyncConfig{Repository: h.repo, User: user, Logger: h.logger})
	if err != nil {
		writeInternalError(c, h.logger, err)
		return nil, false
	}
	sync.Attach(c.Request.Context())
	if err := sync.WaitReady(c.Request.Context()); err != nil {
		sync.Detach()
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Request cancelled", Details: err.Error()})
		return nil, false
	}
	if snapshot := sync.Snapshot(); snapshot.Error != "" {
		sync.Detach()
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: snapshot.Error})
		return nil, false
	}
	return sync, true
}

// ListCars handles GET /cars.
func (h *CarHandler) ListCars(c *gin.Context) {
	sync, ok := h.attach(c)
	if !ok {
		return
	}
	defer sync.Detach()
	c.JSON(http.StatusOK, sync.Snapshot())
}

// AddCar handles POST /cars.
func (h *CarHandler) AddCar(c *gin.Context) {
	var req models.AddCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	sync, ok := h.attach(c)
	if !ok {
		return
	}
	defer sync.Detach()

	car, err := sync.AddCar(c.Request.Context(), req.LicensePlate)
	if err != nil {
		mapCarErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, car)
}

// RemoveCar handles DELETE /cars/:carId.
func (h *CarHandler) RemoveCar(c *gin.Context) {
	carID := c.Param("carId")
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}
	sync, err := core.NewCarSync(core.CarSyncConfig{Repository: h.repo, User: user, Logger: h.logger})
	if err != nil {
		writeInternalError(c, h.logger, err)
		return
	}
	if err := sync.RemoveCar(c.Request.Context(), carID); err != nil {
		mapCarErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Bilen är borttagen"})
}

// StreamCars handles GET /cars/stream as server-sent events.
func (h *CarHandler) StreamCars(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}
	sync, err := core.NewCarSync(core.CarSyncConfig{Repository: h.repo, User: user, Logger: h.logger})
	if err != nil {
		writeInternalError(c, h.logger, err)
		return
	}
	sync.Attach(c.Request.Context())
	defer sync.Detach()

	streamEvents(c, h.heartbeat, sync.Changes(), eventCars, func() interface{} {
		return sync.Snapshot()
	})
}
