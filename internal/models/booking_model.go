package models

import "time"

// Booking represents one parking reservation for a single date and spot.
type Booking struct {
	ID           string    `json:"id" firestore:"-"`     // Document ID, auto-generated
	Date         string    `json:"date" firestore:"date"` // YYYY-MM-DD
	Spot         int       `json:"spot" firestore:"spot"`
	LicensePlate string    `json:"licensePlate" firestore:"licensePlate" validate:"len=6,alphanum,uppercase"`
	Name         string    `json:"name" firestore:"name"` // Display name at creation time, never refreshed
	UserID       string    `json:"userId" firestore:"userId" validate:"required"`
	PhoneNumber  string    `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	ReminderSent bool      `json:"reminderSent" firestore:"reminderSent"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// Occupant is the lightweight view of a booking stored in a BookingMap.
type Occupant struct {
	ID           string `json:"id"`
	LicensePlate string `json:"licensePlate"`
	Name         string `json:"name"`
	UserID       string `json:"userId"`
}

// OccupantOf projects a booking onto its occupant record.
func OccupantOf(b *Booking) Occupant {
	return Occupant{
		ID:           b.ID,
		LicensePlate: b.LicensePlate,
		Name:         b.Name,
		UserID:       b.UserID,
	}
}

// BookingMap maps a date to the occupants of that date keyed by spot.
// It is a projection of a query result and is replaced, never patched.
type BookingMap map[string]map[int]Occupant

// Occupant returns the occupant at date/spot, if any.
func (m BookingMap) Occupant(date string, spot int) (Occupant, bool) {
	day, ok := m[date]
	if !ok {
		return Occupant{}, false
	}
	occupant, ok := day[spot]
	return occupant, ok
}

// Flatten returns the map as Booking-shaped records. Order is unspecified.
func (m BookingMap) Flatten() []Booking {
	results := make([]Booking, 0)
	for date, day := range m {
		for spot, occupant := range day {
			results = append(results, Booking{
				ID:           occupant.ID,
				Date:         date,
				Spot:         spot,
				LicensePlate: occupant.LicensePlate,
				Name:         occupant.Name,
				UserID:       occupant.UserID,
			})
		}
	}
	return results
}
