package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
	"github.com/gustavlindstroms/parkmalmokontor/internal/middleware"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC)
}

func newTestRouter(t *testing.T) (*gin.Engine, *db.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := db.NewMemoryStore(fixedNow)
	logger := zap.NewNop()

	router := gin.New()
	SetupRoutes(router, logger,
		middleware.NewAuthMiddleware(middleware.InsecureVerifier{}, true, logger),
		NewBookingHandler(BookingHandlerConfig{
			Repository: store.Bookings(),
			Spots:      []int{1, 2, 3, 4, 5, 6},
			Location:   time.UTC,
			Clock:      fixedNow,
			Logger:     logger,
		}),
		NewCarHandler(store.Cars(), time.Minute, logger),
		NewUserHandler([]int{1, 2, 3, 4, 5, 6}, logger),
	)
	return router, store
}

func do(t *testing.T, router http.Handler, method, target, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, target, &payload)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target), rec.Body.String())
}

func TestHealthAndMe(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/v1/me", "", nil).Code)

	rec := do(t, router, http.MethodGet, "/api/v1/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	decode(t, rec, &me)
	assert.Equal(t, "alice", me.ID)
	assert.Equal(t, "alice", me.Key)
	assert.Equal(t, "Användare", me.DisplayName)
	assert.True(t, me.Anonymous)

	rec = do(t, router, http.MethodGet, "/api/v1/spots", "alice", nil)
	assert.JSONEq(t, `{"spots":[1,2,3,4,5,6]}`, rec.Body.String())
}

func TestBookingLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	request := models.CreateBookingRequest{Date: "2025-01-10", Spot: 3, LicensePlate: "abc 123"}

	rec := do(t, router, http.MethodPost, "/api/v1/bookings", "alice", request)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Booking
	decode(t, rec, &created)
	assert.Equal(t, "ABC123", created.LicensePlate)
	assert.Equal(t, fixedNow(), created.CreatedAt)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings?date=2025-01-10", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]json.RawMessage
	decode(t, rec, &raw)
	assert.NotContains(t, raw, "error", "a served grid never carries a load error")
	var grid DayGridResponse
	decode(t, rec, &grid)
	require.Len(t, grid.Spots, 6)
	require.NotNil(t, grid.Spots[2].Occupant)
	assert.Equal(t, "ABC123", grid.Spots[2].Occupant.LicensePlate)
	assert.True(t, grid.Spots[2].CanCancel)
	assert.True(t, grid.UserHasBooking)
	assert.Nil(t, grid.Spots[0].Occupant)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings?date=2025-01-10", "bob", nil)
	decode(t, rec, &grid)
	assert.False(t, grid.Spots[2].CanCancel)
	assert.False(t, grid.UserHasBooking)

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "alice", models.CreateBookingRequest{Date: "2025-01-10", Spot: 4, LicensePlate: "ABC123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Du har redan en bokning denna dag")

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "bob", models.CreateBookingRequest{Date: "2025-01-10", Spot: 3, LicensePlate: "XYZ789"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Platsen är redan bokad")

	rec = do(t, router, http.MethodDelete, "/api/v1/bookings?date=2025-01-10&spot=3", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Du har inte behörighet att avboka.")

	rec = do(t, router, http.MethodDelete, "/api/v1/bookings?date=2025-01-10&spot=5", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/v1/bookings?date=2025-01-10&spot=3", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings?date=2025-01-10", "alice", nil)
	decode(t, rec, &grid)
	assert.Nil(t, grid.Spots[2].Occupant)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/bookings", "alice", map[string]string{"date": "2025-01-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "alice", models.CreateBookingRequest{Date: "2025-01-10", Spot: 1, LicensePlate: "AB1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exakt 6 tecken")

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "alice", models.CreateBookingRequest{Date: "2025-13-01", Spot: 1, LicensePlate: "ABC123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "alice", models.CreateBookingRequest{Date: "2025-01-10", Spot: 9, LicensePlate: "ABC123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelBookingByID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/bookings", "alice", models.CreateBookingRequest{Date: "2025-01-09", Spot: 1, LicensePlate: "ABC123"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Booking
	decode(t, rec, &created)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodDelete, "/api/v1/bookings/"+created.ID, "bob", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/api/v1/bookings/"+created.ID, "alice", nil).Code)
}

func TestWeekRangeAndMine(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, req := range []struct {
		user string
		body models.CreateBookingRequest
	}{
		{"alice", models.CreateBookingRequest{Date: "2025-01-06", Spot: 1, LicensePlate: "ABC123"}},
		{"alice", models.CreateBookingRequest{Date: "2025-01-10", Spot: 2, LicensePlate: "ABC123"}},
		{"bob", models.CreateBookingRequest{Date: "2025-01-08", Spot: 2, LicensePlate: "XYZ789"}},
		{"alice", models.CreateBookingRequest{Date: "2025-01-13", Spot: 2, LicensePlate: "ABC123"}},
	} {
		require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/bookings", req.user, req.body).Code)
	}

	rec := do(t, router, http.MethodGet, "/api/v1/bookings/week", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var week WeekResponse
	decode(t, rec, &week)
	assert.Equal(t, "2025-01-06", week.Start)
	assert.Equal(t, "2025-01-10", week.End)
	require.Len(t, week.Days, 5)
	assert.Equal(t, "Måndag", week.Days[0].DayName)
	assert.True(t, week.Days[0].UserHasBooking)
	assert.True(t, week.Days[2].IsToday)
	assert.False(t, week.Days[2].UserHasBooking)
	require.NotNil(t, week.Days[2].Spots[1].Occupant)
	assert.Equal(t, "XYZ789", week.Days[2].Spots[1].Occupant.LicensePlate)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings?start=2025-01-06&end=2025-01-10", "alice", nil)
	var list BookingListResponse
	decode(t, rec, &list)
	require.Len(t, list.Bookings, 3)
	assert.Equal(t, "2025-01-06", list.Bookings[0].Date)
	assert.Equal(t, "2025-01-10", list.Bookings[2].Date)

	rec = do(t, router, http.MethodGet, "/api/v1/bookings/mine", "alice", nil)
	decode(t, rec, &list)
	require.Len(t, list.Bookings, 2, "bookings before today are excluded")
	assert.Equal(t, "2025-01-10", list.Bookings[0].Date)
	assert.Equal(t, "2025-01-13", list.Bookings[1].Date)
}

func TestCars(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/cars", "alice", models.AddCarRequest{LicensePlate: "abc-123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var car models.Car
	decode(t, rec, &car)
	assert.Equal(t, "ABC123", car.LicensePlate)

	rec = do(t, router, http.MethodPost, "/api/v1/cars", "alice", models.AddCarRequest{LicensePlate: "ABC123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Denna bil finns redan i listan")

	rec = do(t, router, http.MethodPost, "/api/v1/cars", "alice", models.AddCarRequest{LicensePlate: "A1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/cars", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Cars []models.Car `json:"cars"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Cars, 1)

	rec = do(t, router, http.MethodGet, "/api/v1/cars", "bob", nil)
	decode(t, rec, &list)
	assert.Empty(t, list.Cars)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodDelete, "/api/v1/cars/"+car.ID, "bob", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/api/v1/cars/"+car.ID, "alice", nil).Code)
}

func TestStreamBookingsSendsSnapshot(t *testing.T) {
	router, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/bookings", "alice",
		models.CreateBookingRequest{Date: "2025-01-10", Spot: 2, LicensePlate: "ABC123"}).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/stream?date=2025-01-10&access_token=alice", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:bookings\n"), body)
	assert.Contains(t, body, `"licensePlate":"ABC123"`)
}

func TestStreamBookingsNeedsSelector(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/v1/bookings/stream", "alice", nil).Code)
}
