package models

// CreateBookingRequest represents the request body for reserving a spot.
type CreateBookingRequest struct {
	Date         string `json:"date" binding:"required"`
	Spot         int    `json:"spot" binding:"required,min=1"`
	LicensePlate string `json:"licensePlate" binding:"required"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

// AddCarRequest represents the request body for registering a car.
type AddCarRequest struct {
	LicensePlate string `json:"licensePlate" binding:"required"`
}
