package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/core"
	"github.com/gustavlindstroms/parkmalmokontor/internal/dates"
	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
	"github.com/gustavlindstroms/parkmalmokontor/internal/plate"
)

// BookingHandlerConfig carries the collaborators of a BookingHandler.
type BookingHandlerConfig struct {
	Repository db.BookingRepository
	Spots      []int
	Location   *time.Location
	Clock      func() time.Time
	Heartbeat  time.Duration
	Logger     *zap.Logger
}

// BookingHandler handles API endpoints related to bookings. Every request works on its own
// core.BookingSync, scoped to the caller.
type BookingHandler struct {
	repo      db.BookingRepository
	spots     []int
	loc       *time.Location
	clock     func() time.Time
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(cfg BookingHandlerConfig) *BookingHandler {
	h := &BookingHandler{
		repo:      cfg.Repository,
		spots:     cfg.Spots,
		loc:       cfg.Location,
		clock:     cfg.Clock,
		heartbeat: cfg.Heartbeat,
		logger:    cfg.Logger,
	}
	if h.loc == nil {
		h.loc = time.Local
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 25 * time.Second
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// mapBookingErrorToStatus maps errors from core.BookingSync to HTTP status codes and ErrorResponse.
func mapBookingErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var validationErrors validator.ValidationErrors

	switch {
	case errors.Is(err, core.ErrAlreadyBookedToday), errors.Is(err, core.ErrSpotTaken):
		statusCode = http.StatusConflict
	case errors.Is(err, core.ErrBookingNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, core.ErrCreatePermissionDenied), errors.Is(err, core.ErrCancelPermissionDenied):
		statusCode = http.StatusForbidden
	case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrUnknownSpot),
		errors.Is(err, plate.ErrLength), errors.Is(err, plate.ErrPattern):
		statusCode = http.StatusBadRequest
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: validationErrors.Error()})
		return
	case errors.Is(err, core.ErrCreateFailed), errors.Is(err, core.ErrCancelFailed):
		logger.Error("Booking write failed", zap.Error(err))
		statusCode = http.StatusServiceUnavailable
	default:
		writeInternalError(c, logger, err)
		return
	}
	c.JSON(statusCode, ErrorResponse{Error: core.UserMessage(err)})
}

func (h *BookingHandler) newSync(c *gin.Context) (*core.BookingSync, bool) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return nil, false
	}
	sync, err := core.NewBookingSync(core.BookingSyncConfig{
		Repository: h.repo,
		User:       user,
		Clock:      h.clock,
		Location:   h.loc,
		Spots:      h.spots,
		Logger:     h.logger,
	})
	if err != nil {
		writeInternalError(c, h.logger, err)
		return nil, false
	}
	return sync, true
}

// waitReady blocks until sync has data, writing the error response when it cannot.
func (h *BookingHandler) waitReady(c *gin.Context, sync *core.BookingSync) bool {
	if err := sync.WaitReady(c.Request.Context()); err != nil {
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Request cancelled", Details: err.Error()})
		return false
	}
	if snapshot := sync.Snapshot(); snapshot.Error != "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: snapshot.Error})
		return false
	}
	return true
}

// spotCells lays the configured spots of date out as grid cells.
func (h *BookingHandler) spotCells(sync *core.BookingSync, bookingMap models.BookingMap, date string) []SpotCell {
	cells := make([]SpotCell, 0, len(h.spots))
	for _, spot := range h.spots {
		cell := SpotCell{Spot: spot}
		if occupant, ok := bookingMap.Occupant(date, spot); ok {
			occupant := occupant
			cell.Occupant = &occupant
			cell.CanCancel = sync.CanCancel(date, spot)
		}
		cells = append(cells, cell)
	}
	return cells
}

func sortBookings(bookings []models.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if c := dates.Compare(bookings[i].Date, bookings[j].Date); c != 0 {
			return c < 0
		}
		return bookings[i].Spot < bookings[j].Spot
	})
}

// GetBookings handles GET /bookings?date= (day grid) and GET /bookings?start=&end= (range).
func (h *BookingHandler) GetBookings(c *gin.Context) {
	date := c.Query("date")
	start, end := c.Query("start"), c.Query("end")
	if date == "" && (start == "" || end == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Query parameter 'date' or both 'start' and 'end' are required"})
		return
	}
	for _, value := range []string{date, start, end} {
		if value != "" && !dates.Valid(value) {
			mapBookingErrorToStatus(c, h.logger, core.ErrInvalidDate)
			return
		}
	}

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	defer sync.Unsubscribe()

	if date != "" {
		sync.SubscribeToDate(c.Request.Context(), date)
		if !h.waitReady(c, sync) {
			return
		}
		snapshot := sync.Snapshot()
		c.JSON(http.StatusOK, DayGridResponse{
			Date:           date,
			Spots:          h.spotCells(sync, snapshot.Map, date),
			UserHasBooking: sync.UserHasBookingOnDate(date),
			BookingMap:     snapshot.Map,
		})
		return
	}

	sync.SubscribeToDateRange(c.Request.Context(), start, end)
	if !h.waitReady(c, sync) {
		return
	}
	bookings := sync.Bookings()
	sortBookings(bookings)
	c.JSON(http.StatusOK, BookingListResponse{Bookings: bookings})
}

// GetWeek handles GET /bookings/week?date= and returns Monday to Friday of that week.
func (h *BookingHandler) GetWeek(c *gin.Context) {
	today := dates.Today(h.clock(), h.loc)
	date := c.DefaultQuery("date", today)
	week, err := dates.WeekDates(date, today)
	if err != nil {
		mapBookingErrorToStatus(c, h.logger, core.ErrInvalidDate)
		return
	}
	start, end := week[0].Date, week[len(week)-1].Date

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	defer sync.Unsubscribe()

	sync.SubscribeToDateRange(c.Request.Context(), start, end)
	if !h.waitReady(c, sync) {
		return
	}
	snapshot := sync.Snapshot()

	days := make([]WeekDayResponse, 0, len(week))
	for _, day := range week {
		days = append(days, WeekDayResponse{
			WeekDate:       day,
			Spots:          h.spotCells(sync, snapshot.Map, day.Date),
			UserHasBooking: sync.UserHasBookingOnDate(day.Date),
		})
	}
	c.JSON(http.StatusOK, WeekResponse{Start: start, End: end, Days: days})
}

// GetMine handles GET /bookings/mine.
func (h *BookingHandler) GetMine(c *gin.Context) {
	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	defer sync.Unsubscribe()

	sync.SubscribeToUserBookings(c.Request.Context())
	if !h.waitReady(c, sync) {
		return
	}
	bookings := sync.Bookings()
	sortBookings(bookings)
	c.JSON(http.StatusOK, BookingListResponse{Bookings: bookings})
}

// CreateBooking handles POST /bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	booking, err := sync.CreateBooking(c.Request.Context(), req.Date, req.Spot, req.LicensePlate, req.PhoneNumber)
	if err != nil {
		mapBookingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// CancelBooking handles DELETE /bookings/:bookingId.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("bookingId")
	if bookingID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Booking ID is required"})
		return
	}

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	if err := sync.CancelBooking(c.Request.Context(), bookingID); err != nil {
		mapBookingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Bokningen är avbokad"})
}

// CancelBookingBySpot handles DELETE /bookings?date=&spot=.
func (h *BookingHandler) CancelBookingBySpot(c *gin.Context) {
	date := c.Query("date")
	spot, err := strconv.Atoi(c.Query("spot"))
	if date == "" || err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Query parameters 'date' and 'spot' are required"})
		return
	}
	if !dates.Valid(date) {
		mapBookingErrorToStatus(c, h.logger, core.ErrInvalidDate)
		return
	}

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	defer sync.Unsubscribe()

	sync.SubscribeToDate(c.Request.Context(), date)
	if !h.waitReady(c, sync) {
		return
	}
	if err := sync.CancelBookingBySpot(c.Request.Context(), date, spot); err != nil {
		mapBookingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Bokningen är avbokad"})
}

// StreamBookings handles GET /bookings/stream as server-sent events. The query selects the
// subscription: date=, start=&end=, or mine=true.
func (h *BookingHandler) StreamBookings(c *gin.Context) {
	date := c.Query("date")
	start, end := c.Query("start"), c.Query("end")
	mine := c.Query("mine") == "true"
	if date == "" && start == "" && end == "" && !mine {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Query parameter 'date', 'start' and 'end', or 'mine' is required"})
		return
	}

	sync, ok := h.newSync(c)
	if !ok {
		return
	}
	defer sync.Unsubscribe()

	ctx := c.Request.Context()
	switch {
	case mine:
		sync.SubscribeToUserBookings(ctx)
	case date != "":
		sync.SubscribeToDate(ctx, date)
	default:
		sync.SubscribeToDateRange(ctx, start, end)
	}

	streamEvents(c, h.heartbeat, sync.Changes(), eventBookings, func() interface{} {
		return sync.Snapshot()
	})
}
