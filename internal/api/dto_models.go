package api

import (
	"github.com/gustavlindstroms/parkmalmokontor/internal/dates"
	"github.com/gustavlindstroms/parkmalmokontor/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MeResponse describes the signed-in user.
type MeResponse struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Email          string `json:"email,omitempty"`
	Key            string `json:"key"`
	SignInProvider string `json:"signInProvider,omitempty"`
	Anonymous      bool   `json:"anonymous"`
}

// SpotCell is one spot of a day grid.
type SpotCell struct {
	Spot      int              `json:"spot"`
	Occupant  *models.Occupant `json:"occupant,omitempty"`
	CanCancel bool             `json:"canCancel"`
}

// DayGridResponse is the single-day booking grid.
type DayGridResponse struct {
	Date           string            `json:"date"`
	Spots          []SpotCell        `json:"spots"`
	UserHasBooking bool              `json:"userHasBooking"`
	BookingMap     models.BookingMap `json:"bookingMap"`
}

// WeekDayResponse is one weekday of the multi-day list view.
type WeekDayResponse struct {
	dates.WeekDate
	Spots          []SpotCell `json:"spots"`
	UserHasBooking bool       `json:"userHasBooking"`
}

// WeekResponse is the Monday to Friday list view.
type WeekResponse struct {
	Start string            `json:"start"`
	End   string            `json:"end"`
	Days  []WeekDayResponse `json:"days"`
}

// BookingListResponse is a flat list of bookings, ordered by date then spot.
type BookingListResponse struct {
	Bookings []models.Booking `json:"bookings"`
}
